// Package settings stores per-tenant dynamic configuration (announcement
// channel, role IDs, etc. from spec.md §6.5) that changes at runtime via
// commands, as opposed to the static process-level config loaded once at
// startup.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Settings holds one tenant's dynamic configuration.
type Settings struct {
	GuildID int64

	AnnouncementChannelID string
	PingRoleID            string
	RefereeRoleID         string
	SummaryChannelID      string
	CharacterChannelID    string
	LoggingChannelID      string
	PlayerRoleID          string
	StaffRoleIDs          []string
	ServerTagRoleID       string
	ServerTagPattern      string
	BoosterRoleID         string

	UpdatedAt time.Time
}

// Default returns the zero-value settings for a tenant that has never
// configured anything.
func Default(guildID int64) *Settings {
	return &Settings{GuildID: guildID, StaffRoleIDs: []string{}}
}

// Store persists Settings, one row per tenant.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the tenant's settings, or Default(guildID) if none have
// ever been saved.
func (s *Store) Get(ctx context.Context, guildID int64) (*Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, announcement_channel_id, ping_role_id, referee_role_id,
			summary_channel_id, character_channel_id, logging_channel_id,
			player_role_id, staff_role_ids, server_tag_role_id, server_tag_pattern,
			booster_role_id, updated_at
		FROM settings WHERE guild_id = ?
	`, guildID)

	var (
		staffRoleIDsJSON string
		updatedAt        string
		out              Settings
	)
	err := row.Scan(&out.GuildID, &out.AnnouncementChannelID, &out.PingRoleID, &out.RefereeRoleID,
		&out.SummaryChannelID, &out.CharacterChannelID, &out.LoggingChannelID,
		&out.PlayerRoleID, &staffRoleIDsJSON, &out.ServerTagRoleID, &out.ServerTagPattern,
		&out.BoosterRoleID, &updatedAt)
	if err == sql.ErrNoRows {
		return Default(guildID), nil
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(staffRoleIDsJSON), &out.StaffRoleIDs)
	out.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	out.UpdatedAt = out.UpdatedAt.UTC()
	return &out, nil
}

// Save upserts a tenant's settings.
func (s *Store) Save(ctx context.Context, cfg *Settings, now time.Time) error {
	staffRoleIDsJSON, err := json.Marshal(cfg.StaffRoleIDs)
	if err != nil {
		return err
	}
	cfg.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (
			guild_id, announcement_channel_id, ping_role_id, referee_role_id,
			summary_channel_id, character_channel_id, logging_channel_id,
			player_role_id, staff_role_ids, server_tag_role_id, server_tag_pattern,
			booster_role_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			announcement_channel_id = excluded.announcement_channel_id,
			ping_role_id = excluded.ping_role_id,
			referee_role_id = excluded.referee_role_id,
			summary_channel_id = excluded.summary_channel_id,
			character_channel_id = excluded.character_channel_id,
			logging_channel_id = excluded.logging_channel_id,
			player_role_id = excluded.player_role_id,
			staff_role_ids = excluded.staff_role_ids,
			server_tag_role_id = excluded.server_tag_role_id,
			server_tag_pattern = excluded.server_tag_pattern,
			booster_role_id = excluded.booster_role_id,
			updated_at = excluded.updated_at
	`,
		cfg.GuildID, cfg.AnnouncementChannelID, cfg.PingRoleID, cfg.RefereeRoleID,
		cfg.SummaryChannelID, cfg.CharacterChannelID, cfg.LoggingChannelID,
		cfg.PlayerRoleID, string(staffRoleIDsJSON), cfg.ServerTagRoleID, cfg.ServerTagPattern,
		cfg.BoosterRoleID, now.UTC().Format(time.RFC3339),
	)
	return err
}

// IsStaff reports whether roleIDs contains any configured staff role.
func (s *Settings) IsStaff(roleIDs []string) bool {
	staff := map[string]bool{}
	for _, id := range s.StaffRoleIDs {
		staff[id] = true
	}
	for _, id := range roleIDs {
		if staff[id] {
			return true
		}
	}
	return false
}
