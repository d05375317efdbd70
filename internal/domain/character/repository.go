package character

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nonagon/core/internal/postalid"
)

var ErrCharacterNotFound = errors.New("character not found")

// Repository persists Characters, in the same raw-SQL shape as
// domain/user.Repository.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Upsert(ctx context.Context, c *Character) error {
	if err := c.Validate(); err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return err
	}
	playedWithJSON, _ := json.Marshal(idStrings(c.PlayedWith))
	playedInJSON, _ := json.Marshal(questIDStrings(c.PlayedIn))
	mentionedInJSON, _ := json.Marshal(questIDStrings(c.MentionedIn))

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO characters (
			character_id, owner_id, guild_id, name, sheet_url, thread_url,
			token_url, art_url, tags, description, notes, status,
			announcement_channel_id, announcement_message_id, announcement_thread_id,
			played_with, played_in, mentioned_in, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, character_id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			sheet_url = excluded.sheet_url,
			thread_url = excluded.thread_url,
			token_url = excluded.token_url,
			art_url = excluded.art_url,
			tags = excluded.tags,
			description = excluded.description,
			notes = excluded.notes,
			status = excluded.status,
			announcement_channel_id = excluded.announcement_channel_id,
			announcement_message_id = excluded.announcement_message_id,
			announcement_thread_id = excluded.announcement_thread_id,
			played_with = excluded.played_with,
			played_in = excluded.played_in,
			mentioned_in = excluded.mentioned_in,
			updated_at = excluded.updated_at
	`,
		c.CharacterID.String(), c.OwnerID.String(), c.GuildID, c.Name, c.SheetURL, c.ThreadURL,
		c.TokenURL, c.ArtURL, string(tagsJSON), c.Description, c.Notes, string(c.Status),
		c.Announcement.ChannelID, c.Announcement.MessageID, c.Announcement.ThreadID,
		string(playedWithJSON), string(playedInJSON), string(mentionedInJSON),
		c.CreatedAt.UTC().Format(time.RFC3339), c.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (r *Repository) Get(ctx context.Context, guildID int64, id postalid.CharacterID) (*Character, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT character_id, owner_id, guild_id, name, sheet_url, thread_url,
			token_url, art_url, tags, description, notes, status,
			announcement_channel_id, announcement_message_id, announcement_thread_id,
			played_with, played_in, mentioned_in, created_at, updated_at
		FROM characters WHERE guild_id = ? AND character_id = ?
	`, guildID, id.String())
	c, err := scanCharacter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *Repository) ListByOwner(ctx context.Context, guildID int64, owner postalid.UserID) ([]*Character, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT character_id, owner_id, guild_id, name, sheet_url, thread_url,
			token_url, art_url, tags, description, notes, status,
			announcement_channel_id, announcement_message_id, announcement_thread_id,
			played_with, played_in, mentioned_in, created_at, updated_at
		FROM characters WHERE guild_id = ? AND owner_id = ?
	`, guildID, owner.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCharacter(s scanner) (*Character, error) {
	var (
		idStr, ownerStr, name, sheetURL, threadURL, tokenURL, artURL string
		tagsJSON, description, notes, status                        string
		annChannel, annMessage, annThread                            sql.NullString
		playedWithJSON, playedInJSON, mentionedInJSON                string
		guildID                                                      int64
		createdAt, updatedAt                                         string
	)
	if err := s.Scan(&idStr, &ownerStr, &guildID, &name, &sheetURL, &threadURL,
		&tokenURL, &artURL, &tagsJSON, &description, &notes, &status,
		&annChannel, &annMessage, &annThread,
		&playedWithJSON, &playedInJSON, &mentionedInJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := postalid.ParseCharacterID(postalid.FromString(idStr))
	if err != nil {
		return nil, err
	}
	owner, err := postalid.ParseUserID(postalid.FromString(ownerStr))
	if err != nil {
		return nil, err
	}

	c := &Character{
		CharacterID: id,
		OwnerID:     owner,
		GuildID:     guildID,
		Name:        name,
		SheetURL:    sheetURL,
		ThreadURL:   threadURL,
		TokenURL:    tokenURL,
		ArtURL:      artURL,
		Description: description,
		Notes:       notes,
		Status:      Status(status),
		Announcement: Coordinates{
			ChannelID: annChannel.String,
			MessageID: annMessage.String,
			ThreadID:  annThread.String,
		},
	}
	_ = json.Unmarshal([]byte(tagsJSON), &c.Tags)

	var playedWithRaw, playedInRaw, mentionedInRaw []string
	_ = json.Unmarshal([]byte(playedWithJSON), &playedWithRaw)
	_ = json.Unmarshal([]byte(playedInJSON), &playedInRaw)
	_ = json.Unmarshal([]byte(mentionedInJSON), &mentionedInRaw)
	c.PlayedWith = parseUserIDs(playedWithRaw)
	c.PlayedIn = parseQuestIDs(playedInRaw)
	c.MentionedIn = parseQuestIDs(mentionedInRaw)

	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func idStrings(ids []postalid.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func questIDStrings(ids []postalid.QuestID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
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

func parseQuestIDs(raw []string) []postalid.QuestID {
	out := make([]postalid.QuestID, 0, len(raw))
	for _, s := range raw {
		if id, err := postalid.ParseQuestID(postalid.FromString(s)); err == nil {
			out = append(out, id)
		}
	}
	return out
}
