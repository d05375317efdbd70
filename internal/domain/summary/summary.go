// Package summary implements the Summary entity (write-ups authored
// after a quest session) from spec.md §3.
package summary

import (
	"time"

	"github.com/nonagon/core/internal/postalid"
	"github.com/nonagon/core/internal/resulterr"
)

type Kind string

const (
	KindPlayer  Kind = "PLAYER"
	KindReferee Kind = "REFEREE"
)

type Status string

const (
	StatusDraft Status = "DRAFT"
	StatusPosted Status = "POSTED"
)

// Coordinates mirrors the quest/character package's announcement
// coordinates shape.
type Coordinates struct {
	ChannelID string
	MessageID string
	ThreadID  string
}

func (c Coordinates) IsPublished() bool { return c.ChannelID != "" && c.MessageID != "" }

// Summary is a player or referee write-up of a completed quest.
type Summary struct {
	SummaryID postalid.SummaryID
	GuildID   int64
	Kind      Kind
	AuthorID  postalid.UserID

	CharacterID *postalid.CharacterID
	QuestID     *postalid.QuestID

	Status Status

	Title   string
	Content string

	Announcement Coordinates

	LinkedCharacterIDs []postalid.CharacterID
	LinkedUserIDs      []postalid.UserID

	EditedAt time.Time
}

// New builds a DRAFT summary for its author.
func New(id postalid.SummaryID, guildID int64, kind Kind, author postalid.UserID, now time.Time) *Summary {
	return &Summary{
		SummaryID: id,
		GuildID:   guildID,
		Kind:      kind,
		AuthorID:  author,
		Status:    StatusDraft,
		EditedAt:  now,
	}
}

// Publish transitions DRAFT → POSTED.
func (s *Summary) Publish(channelID, messageID, threadID string, now time.Time) error {
	if s.Status == StatusPosted {
		return resulterr.Conflictf("this summary has already been posted")
	}
	if channelID == "" {
		return resulterr.Validationf("no summary channel is configured")
	}
	s.Status = StatusPosted
	s.Announcement = Coordinates{ChannelID: channelID, MessageID: messageID, ThreadID: threadID}
	s.EditedAt = now
	return nil
}

// Validate enumerates every constraint on a Summary, per spec.md §4.5.
func (s *Summary) Validate() error {
	if s.SummaryID.IsZero() {
		return resulterr.Validationf("summary_id is required")
	}
	if s.GuildID == 0 {
		return resulterr.Validationf("guild_id is required")
	}
	if s.AuthorID.IsZero() {
		return resulterr.Validationf("author_id is required")
	}
	switch s.Kind {
	case KindPlayer, KindReferee:
	default:
		return resulterr.Validationf("invalid summary kind %q", s.Kind)
	}
	switch s.Status {
	case StatusDraft, StatusPosted:
	default:
		return resulterr.Validationf("invalid summary status %q", s.Status)
	}
	if s.Kind == KindPlayer && s.CharacterID == nil {
		return resulterr.Validationf("a player summary requires a character_id")
	}
	return nil
}
