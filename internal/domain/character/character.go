// Package character implements the Character entity and its validation
// and status-transition invariants from spec.md §3 and §8.
package character

import (
	"net/url"
	"time"

	"github.com/nonagon/core/internal/postalid"
	"github.com/nonagon/core/internal/resulterr"
)

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRetired Status = "RETIRED"
)

const (
	minNameLength = 2
	maxNameLength = 64
	maxTags       = 20
	maxTextLength = 500
)

// Coordinates identifies an entity's public chat message: the channel,
// message, and optional thread it was posted in.
type Coordinates struct {
	ChannelID string
	MessageID string
	ThreadID  string
}

// IsPublished reports whether these coordinates point at a real message.
func (c Coordinates) IsPublished() bool { return c.ChannelID != "" && c.MessageID != "" }

// Character is a player-owned character profile.
type Character struct {
	CharacterID postalid.CharacterID
	OwnerID     postalid.UserID
	GuildID     int64

	Name string

	SheetURL string
	ThreadURL string
	TokenURL string
	ArtURL   string

	Tags        []string
	Description string
	Notes       string

	Status Status

	Announcement Coordinates

	CreatedAt time.Time
	UpdatedAt time.Time

	PlayedWith  []postalid.UserID
	PlayedIn    []postalid.QuestID
	MentionedIn []postalid.QuestID
}

// New builds a default DRAFT-equivalent (ACTIVE) character for its owner.
func New(id postalid.CharacterID, owner postalid.UserID, guildID int64, name string, now time.Time) *Character {
	return &Character{
		CharacterID: id,
		OwnerID:     owner,
		GuildID:     guildID,
		Name:        name,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Activate transitions the character to ACTIVE. Idempotent.
func (c *Character) Activate(now time.Time) {
	if c.Status == StatusActive {
		return
	}
	c.Status = StatusActive
	c.UpdatedAt = now
}

// Deactivate transitions the character to RETIRED. Idempotent.
func (c *Character) Deactivate(now time.Time) {
	if c.Status == StatusRetired {
		return
	}
	c.Status = StatusRetired
	c.UpdatedAt = now
}

func validHTTPURL(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// Validate enumerates every constraint on a Character, per spec.md §4.5.
func (c *Character) Validate() error {
	if c.CharacterID.IsZero() {
		return resulterr.Validationf("character_id is required")
	}
	if c.OwnerID.IsZero() {
		return resulterr.Validationf("owner_id is required")
	}
	if c.GuildID == 0 {
		return resulterr.Validationf("guild_id is required")
	}
	if len(c.Name) < minNameLength || len(c.Name) > maxNameLength {
		return resulterr.Validationf("character name must be between %d and %d characters", minNameLength, maxNameLength)
	}
	if !validHTTPURL(c.SheetURL) {
		return resulterr.Validationf("sheet url must use http or https")
	}
	if !validHTTPURL(c.ThreadURL) {
		return resulterr.Validationf("thread url must use http or https")
	}
	if !validHTTPURL(c.TokenURL) {
		return resulterr.Validationf("token url must use http or https")
	}
	if !validHTTPURL(c.ArtURL) {
		return resulterr.Validationf("art url must use http or https")
	}
	if len(c.Tags) > maxTags {
		return resulterr.Validationf("a character may have at most %d tags", maxTags)
	}
	if len(c.Description) > maxTextLength {
		return resulterr.Validationf("description must be at most %d characters", maxTextLength)
	}
	if len(c.Notes) > maxTextLength {
		return resulterr.Validationf("notes must be at most %d characters", maxTextLength)
	}
	switch c.Status {
	case StatusActive, StatusRetired:
	default:
		return resulterr.Validationf("invalid character status %q", c.Status)
	}
	return nil
}
