package summary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nonagon/core/internal/postalid"
)

var ErrSummaryNotFound = errors.New("summary not found")

// Repository persists Summaries in the same raw-SQL shape as the other
// domain repositories.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func optionalString[T interface{ String() string }](v *T) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: (*v).String(), Valid: true}
}

func (r *Repository) Upsert(ctx context.Context, s *Summary) error {
	if err := s.Validate(); err != nil {
		return err
	}
	linkedCharJSON, _ := json.Marshal(characterIDStrings(s.LinkedCharacterIDs))
	linkedUserJSON, _ := json.Marshal(userIDStrings(s.LinkedUserIDs))

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO summaries (
			summary_id, guild_id, kind, author_id, character_id, quest_id,
			status, title, content, announcement_channel_id,
			announcement_message_id, announcement_thread_id,
			linked_character_ids, linked_user_ids, edited_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, summary_id) DO UPDATE SET
			kind = excluded.kind,
			character_id = excluded.character_id,
			quest_id = excluded.quest_id,
			status = excluded.status,
			title = excluded.title,
			content = excluded.content,
			announcement_channel_id = excluded.announcement_channel_id,
			announcement_message_id = excluded.announcement_message_id,
			announcement_thread_id = excluded.announcement_thread_id,
			linked_character_ids = excluded.linked_character_ids,
			linked_user_ids = excluded.linked_user_ids,
			edited_at = excluded.edited_at
	`,
		s.SummaryID.String(), s.GuildID, string(s.Kind), s.AuthorID.String(),
		optionalString(s.CharacterID), optionalString(s.QuestID),
		string(s.Status), s.Title, s.Content,
		s.Announcement.ChannelID, s.Announcement.MessageID, s.Announcement.ThreadID,
		string(linkedCharJSON), string(linkedUserJSON), s.EditedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (r *Repository) Get(ctx context.Context, guildID int64, id postalid.SummaryID) (*Summary, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT summary_id, guild_id, kind, author_id, character_id, quest_id,
			status, title, content, announcement_channel_id,
			announcement_message_id, announcement_thread_id,
			linked_character_ids, linked_user_ids, edited_at
		FROM summaries WHERE guild_id = ? AND summary_id = ?
	`, guildID, id.String())
	s, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSummaryNotFound
		}
		return nil, err
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(sc scanner) (*Summary, error) {
	var (
		idStr, kind, authorStr                string
		characterStr, questStr                sql.NullString
		status, title, content                string
		annChannel, annMessage, annThread      sql.NullString
		linkedCharJSON, linkedUserJSON         string
		editedAt                               string
		guildID                                int64
	)
	if err := sc.Scan(&idStr, &guildID, &kind, &authorStr, &characterStr, &questStr,
		&status, &title, &content, &annChannel, &annMessage, &annThread,
		&linkedCharJSON, &linkedUserJSON, &editedAt); err != nil {
		return nil, err
	}

	id, err := postalid.ParseSummaryID(postalid.FromString(idStr))
	if err != nil {
		return nil, err
	}
	author, err := postalid.ParseUserID(postalid.FromString(authorStr))
	if err != nil {
		return nil, err
	}

	s := &Summary{
		SummaryID: id,
		GuildID:   guildID,
		Kind:      Kind(kind),
		AuthorID:  author,
		Status:    Status(status),
		Title:     title,
		Content:   content,
		Announcement: Coordinates{
			ChannelID: annChannel.String,
			MessageID: annMessage.String,
			ThreadID:  annThread.String,
		},
	}
	if characterStr.Valid && characterStr.String != "" {
		cid, err := postalid.ParseCharacterID(postalid.FromString(characterStr.String))
		if err == nil {
			s.CharacterID = &cid
		}
	}
	if questStr.Valid && questStr.String != "" {
		qid, err := postalid.ParseQuestID(postalid.FromString(questStr.String))
		if err == nil {
			s.QuestID = &qid
		}
	}

	var charIDs, userIDs []string
	_ = json.Unmarshal([]byte(linkedCharJSON), &charIDs)
	_ = json.Unmarshal([]byte(linkedUserJSON), &userIDs)
	s.LinkedCharacterIDs = parseCharacterIDs(charIDs)
	s.LinkedUserIDs = parseUserIDs(userIDs)

	s.EditedAt, _ = time.Parse(time.RFC3339, editedAt)
	s.EditedAt = s.EditedAt.UTC()
	return s, nil
}

func characterIDStrings(ids []postalid.CharacterID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func userIDStrings(ids []postalid.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseCharacterIDs(raw []string) []postalid.CharacterID {
	out := make([]postalid.CharacterID, 0, len(raw))
	for _, s := range raw {
		if id, err := postalid.ParseCharacterID(postalid.FromString(s)); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func parseUserIDs(raw []string) []postalid.UserID {
	out := make([]postalid.UserID, 0, len(raw))
	for _, s := range raw {
		if id, err := postalid.ParseUserID(postalid.FromString(s)); err == nil {
			out = append(out, id)
		}
	}
	return out
}
