package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nonagon/core/internal/postalid"
)

var ErrUserNotFound = errors.New("user not found")

// Repository persists Users against a single tenant's SQLite database, in
// the raw-SQL style of the teacher's message/user repositories: explicit
// column lists, RFC3339 timestamp strings, JSON columns for nested shapes.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type row struct {
	rolesJSON   string
	playerJSON  sql.NullString
	refereeJSON sql.NullString
	joinedAt    string
	lastActive  string
}

// Upsert inserts or replaces the user document keyed by (guild_id,
// user_id.value), per spec.md §4.1's direct-upsert persistence path.
func (r *Repository) Upsert(ctx context.Context, u *User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	rolesJSON, playerJSON, refereeJSON, err := encodeUser(u)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (
			user_id, guild_id, discord_id, roles, has_server_tag, dm_opt_in,
			joined_at, last_active_at, messages_count, reactions_given,
			reactions_received, voice_seconds, player, referee
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			discord_id = excluded.discord_id,
			roles = excluded.roles,
			has_server_tag = excluded.has_server_tag,
			dm_opt_in = excluded.dm_opt_in,
			last_active_at = excluded.last_active_at,
			messages_count = excluded.messages_count,
			reactions_given = excluded.reactions_given,
			reactions_received = excluded.reactions_received,
			voice_seconds = excluded.voice_seconds,
			player = excluded.player,
			referee = excluded.referee
	`,
		u.UserID.String(), u.GuildID, u.DiscordID, rolesJSON, u.HasServerTag, u.DMOptIn,
		u.JoinedAt.UTC().Format(time.RFC3339), u.LastActiveAt.UTC().Format(time.RFC3339),
		u.MessagesCount, u.ReactionsGiven, u.ReactionsReceived, u.VoiceSeconds,
		playerJSON, refereeJSON,
	)
	return err
}

// Get fetches a single user by postal ID within a tenant.
func (r *Repository) Get(ctx context.Context, guildID int64, id postalid.UserID) (*User, error) {
	rr := r.db.QueryRowContext(ctx, `
		SELECT user_id, guild_id, discord_id, roles, has_server_tag, dm_opt_in,
			joined_at, last_active_at, messages_count, reactions_given,
			reactions_received, voice_seconds, player, referee
		FROM users WHERE guild_id = ? AND user_id = ?
	`, guildID, id.String())
	u, err := scanUser(rr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// ListByGuild returns every user document for the tenant, matching
// spec.md §4.1's initial-load scan ("read all user documents whose
// guild_id matches"). Documents predating the guild_id column (legacy)
// are included by the caller passing guildID <= 0, matching the "absent
// that field" fallback.
func (r *Repository) ListByGuild(ctx context.Context, guildID int64) ([]*User, error) {
	var rows *sql.Rows
	var err error
	if guildID > 0 {
		rows, err = r.db.QueryContext(ctx, `
			SELECT user_id, guild_id, discord_id, roles, has_server_tag, dm_opt_in,
				joined_at, last_active_at, messages_count, reactions_given,
				reactions_received, voice_seconds, player, referee
			FROM users WHERE guild_id = ?
		`, guildID)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT user_id, guild_id, discord_id, roles, has_server_tag, dm_opt_in,
				joined_at, last_active_at, messages_count, reactions_given,
				reactions_received, voice_seconds, player, referee
			FROM users
		`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var (
		idStr, discordID, rolesJSON string
		guildID                     int64
		hasServerTag, dmOptIn       bool
		joinedAt, lastActive        string
		messages, given, received, voice int64
		playerJSON, refereeJSON     sql.NullString
	)
	if err := s.Scan(&idStr, &guildID, &discordID, &rolesJSON, &hasServerTag, &dmOptIn,
		&joinedAt, &lastActive, &messages, &given, &received, &voice, &playerJSON, &refereeJSON); err != nil {
		return nil, err
	}

	id, err := postalid.ParseUserID(postalid.FromString(idStr))
	if err != nil {
		return nil, err
	}

	u := &User{
		UserID:            id,
		DiscordID:         discordID,
		GuildID:           guildID,
		HasServerTag:      hasServerTag,
		DMOptIn:           dmOptIn,
		MessagesCount:     messages,
		ReactionsGiven:    given,
		ReactionsReceived: received,
		VoiceSeconds:      voice,
	}
	u.JoinedAt, _ = time.Parse(time.RFC3339, joinedAt)
	u.LastActiveAt, _ = time.Parse(time.RFC3339, lastActive)
	u.JoinedAt = u.JoinedAt.UTC()
	u.LastActiveAt = u.LastActiveAt.UTC()

	roles := map[Role]bool{}
	if err := json.Unmarshal([]byte(rolesJSON), &roles); err != nil {
		return nil, err
	}
	u.Roles = roles

	if playerJSON.Valid && playerJSON.String != "" {
		var p PlayerProfile
		if err := json.Unmarshal([]byte(playerJSON.String), &p); err != nil {
			return nil, err
		}
		u.Player = &p
	}
	if refereeJSON.Valid && refereeJSON.String != "" {
		var rp RefereeProfile
		if err := json.Unmarshal([]byte(refereeJSON.String), &rp); err != nil {
			return nil, err
		}
		u.Referee = &rp
	}
	return u, nil
}

func encodeUser(u *User) (rolesJSON string, playerJSON, refereeJSON sql.NullString, err error) {
	rb, err := json.Marshal(u.Roles)
	if err != nil {
		return "", sql.NullString{}, sql.NullString{}, err
	}
	rolesJSON = string(rb)

	if u.Player != nil {
		pb, err := json.Marshal(u.Player)
		if err != nil {
			return "", sql.NullString{}, sql.NullString{}, err
		}
		playerJSON = sql.NullString{String: string(pb), Valid: true}
	}
	if u.Referee != nil {
		rfb, err := json.Marshal(u.Referee)
		if err != nil {
			return "", sql.NullString{}, sql.NullString{}, err
		}
		refereeJSON = sql.NullString{String: string(rfb), Valid: true}
	}
	return rolesJSON, playerJSON, refereeJSON, nil
}
