package quest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nonagon/core/internal/postalid"
)

var ErrQuestNotFound = errors.New("quest not found")

// Repository persists Quests in the same raw-SQL shape as the other
// domain repositories.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func (r *Repository) Upsert(ctx context.Context, q *Quest) error {
	if err := q.Validate(); err != nil {
		return err
	}
	tagsJSON, _ := json.Marshal(q.Tags)
	signupsJSON, err := json.Marshal(encodeSignups(q.SignUps))
	if err != nil {
		return err
	}
	linkedCharJSON, _ := json.Marshal(characterIDStrings(q.LinkedCharacterIDs))
	linkedUserJSON, _ := json.Marshal(userIDStrings(q.LinkedUserIDs))

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quests (
			quest_id, guild_id, referee_id, announcement_channel_id,
			announcement_message_id, announcement_thread_id, title, description,
			tags, image_url, raw_markdown, starting_at, duration_seconds, status,
			announce_at, started_at, ended_at, last_nudged_at, signups_closed,
			signups, linked_character_ids, linked_user_ids
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, quest_id) DO UPDATE SET
			referee_id = excluded.referee_id,
			announcement_channel_id = excluded.announcement_channel_id,
			announcement_message_id = excluded.announcement_message_id,
			announcement_thread_id = excluded.announcement_thread_id,
			title = excluded.title,
			description = excluded.description,
			tags = excluded.tags,
			image_url = excluded.image_url,
			raw_markdown = excluded.raw_markdown,
			starting_at = excluded.starting_at,
			duration_seconds = excluded.duration_seconds,
			status = excluded.status,
			announce_at = excluded.announce_at,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			last_nudged_at = excluded.last_nudged_at,
			signups_closed = excluded.signups_closed,
			signups = excluded.signups,
			linked_character_ids = excluded.linked_character_ids,
			linked_user_ids = excluded.linked_user_ids
	`,
		q.QuestID.String(), q.GuildID, q.RefereeID.String(),
		q.Announcement.ChannelID, q.Announcement.MessageID, q.Announcement.ThreadID,
		q.Title, q.Description, string(tagsJSON), q.ImageURL, q.RawMarkdown,
		q.StartingAt.UTC().Format(time.RFC3339), int64(q.Duration.Seconds()), string(q.Status),
		formatTimePtr(q.AnnounceAt), formatTimePtr(q.StartedAt), formatTimePtr(q.EndedAt), formatTimePtr(q.LastNudgedAt),
		q.SignupsClosed(), string(signupsJSON), string(linkedCharJSON), string(linkedUserJSON),
	)
	return err
}

func (r *Repository) Get(ctx context.Context, guildID int64, id postalid.QuestID) (*Quest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT quest_id, guild_id, referee_id, announcement_channel_id,
			announcement_message_id, announcement_thread_id, title, description,
			tags, image_url, raw_markdown, starting_at, duration_seconds, status,
			announce_at, started_at, ended_at, last_nudged_at, signups_closed,
			signups, linked_character_ids, linked_user_ids
		FROM quests WHERE guild_id = ? AND quest_id = ?
	`, guildID, id.String())
	q, err := scanQuest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	return q, nil
}

// ListPendingAnnouncements returns every quest whose announce_at is set
// and whose announcement has not yet been published, for the deferred
// scheduler (§4.3). The query filters on announce_at being set and
// channel_id being absent/empty; the "announce_at <= now" part is applied
// by the caller on the returned set, which lets the scheduler own its own
// time source (clock.Clock) rather than baking `now` into the query.
func (r *Repository) ListPendingAnnouncements(ctx context.Context, guildID int64) ([]*Quest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT quest_id, guild_id, referee_id, announcement_channel_id,
			announcement_message_id, announcement_thread_id, title, description,
			tags, image_url, raw_markdown, starting_at, duration_seconds, status,
			announce_at, started_at, ended_at, last_nudged_at, signups_closed,
			signups, linked_character_ids, linked_user_ids
		FROM quests
		WHERE guild_id = ?
			AND announce_at IS NOT NULL
			AND (announcement_channel_id IS NULL OR announcement_channel_id = '')
	`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuest(s scanner) (*Quest, error) {
	var (
		idStr, refereeStr                                   string
		annChannel, annMessage, annThread                    sql.NullString
		title, description, tagsJSON, imageURL, rawMarkdown  string
		startingAt                                           string
		durationSeconds                                      int64
		status                                                string
		announceAt, startedAt, endedAt, lastNudgedAt         sql.NullString
		signupsClosed                                         bool
		signupsJSON, linkedCharJSON, linkedUserJSON           string
		guildID                                               int64
	)
	if err := s.Scan(&idStr, &guildID, &refereeStr, &annChannel, &annMessage, &annThread,
		&title, &description, &tagsJSON, &imageURL, &rawMarkdown, &startingAt, &durationSeconds, &status,
		&announceAt, &startedAt, &endedAt, &lastNudgedAt, &signupsClosed,
		&signupsJSON, &linkedCharJSON, &linkedUserJSON); err != nil {
		return nil, err
	}

	id, err := postalid.ParseQuestID(postalid.FromString(idStr))
	if err != nil {
		return nil, err
	}
	referee, err := postalid.ParseUserID(postalid.FromString(refereeStr))
	if err != nil {
		return nil, err
	}

	q := &Quest{
		QuestID:     id,
		GuildID:     guildID,
		RefereeID:   referee,
		Title:       title,
		Description: description,
		ImageURL:    imageURL,
		RawMarkdown: rawMarkdown,
		Duration:    time.Duration(durationSeconds) * time.Second,
		Status:      Status(status),
		Announcement: Coordinates{
			ChannelID: annChannel.String,
			MessageID: annMessage.String,
			ThreadID:  annThread.String,
		},
	}
	q.StartingAt, _ = time.Parse(time.RFC3339, startingAt)
	q.StartingAt = q.StartingAt.UTC()
	q.AnnounceAt = parseTimePtr(announceAt)
	q.StartedAt = parseTimePtr(startedAt)
	q.EndedAt = parseTimePtr(endedAt)
	q.LastNudgedAt = parseTimePtr(lastNudgedAt)
	q.SetSignupsClosed(signupsClosed)

	_ = json.Unmarshal([]byte(tagsJSON), &q.Tags)

	var encoded []encodedSignup
	_ = json.Unmarshal([]byte(signupsJSON), &encoded)
	q.SignUps = decodeSignups(encoded)

	var charIDs, userIDs []string
	_ = json.Unmarshal([]byte(linkedCharJSON), &charIDs)
	_ = json.Unmarshal([]byte(linkedUserJSON), &userIDs)
	q.LinkedCharacterIDs = parseCharacterIDs(charIDs)
	q.LinkedUserIDs = parseUserIDs(userIDs)

	return q, nil
}

type encodedSignup struct {
	UserID      string       `json:"user_id"`
	CharacterID string       `json:"character_id"`
	Status      SignUpStatus `json:"status"`
}

func encodeSignups(signups []PlayerSignUp) []encodedSignup {
	out := make([]encodedSignup, len(signups))
	for i, s := range signups {
		out[i] = encodedSignup{UserID: s.UserID.String(), CharacterID: s.CharacterID.String(), Status: s.Status}
	}
	return out
}

func decodeSignups(encoded []encodedSignup) []PlayerSignUp {
	out := make([]PlayerSignUp, 0, len(encoded))
	for _, e := range encoded {
		uid, err := postalid.ParseUserID(postalid.FromString(e.UserID))
		if err != nil {
			continue
		}
		cid, err := postalid.ParseCharacterID(postalid.FromString(e.CharacterID))
		if err != nil {
			continue
		}
		out = append(out, PlayerSignUp{UserID: uid, CharacterID: cid, Status: e.Status})
	}
	return out
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
