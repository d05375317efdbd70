// Package gateway defines the port contract between the core and the
// chat gateway transport. Per spec.md §1, the gateway transport itself is
// an excluded external collaborator — only its interface contract with
// the core (§6.1 inbound events, §6.2 outbound operations) is implemented
// here, plus an in-memory fake (see fake.go) used by tests.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrForbidden is returned by SendDM when the recipient has DMs closed;
// per spec.md §6.2 this is treated as an opt-out, not a failure to retry.
var ErrForbidden = errors.New("gateway: forbidden (recipient has DMs closed)")

// EmbedField is one name/value pair in an Embed.
type EmbedField struct {
	Name    string
	Value   string
	Inline  bool
}

// Embed is the rich-message payload attached to outbound chat messages.
type Embed struct {
	Title       string
	Description string
	Color       int
	ImageURL    string
	Fields      []EmbedField
	Footer      string
}

// ComponentKind distinguishes interactive components attached to a
// message.
type ComponentKind string

const (
	ComponentButton     ComponentKind = "button"
	ComponentSelectMenu ComponentKind = "select_menu"
)

// Component is a single interactive element (button or select menu)
// attached to an outbound message.
type Component struct {
	Kind     ComponentKind
	CustomID string
	Label    string
	Options  []string // select-menu option labels; unused for buttons
	Disabled bool
}

// OutboundMessage is the payload for a send/edit operation.
type OutboundMessage struct {
	Content    string
	Embed      *Embed
	Components []Component
}

// Outbound is the set of chat operations the core performs, per
// spec.md §6.2.
type Outbound interface {
	// SendMessage posts msg to channelID and returns the new message ID.
	SendMessage(ctx context.Context, channelID string, msg OutboundMessage) (messageID string, err error)
	// EditMessage replaces the content of an existing message in place,
	// per the wizard preview invariant (§4.4) and the announcement-resync
	// step of adjudication (§4.2).
	EditMessage(ctx context.Context, channelID, messageID string, msg OutboundMessage) error
	// CreatePrivateThread attaches a private thread to an existing
	// message, used for character onboarding.
	CreatePrivateThread(ctx context.Context, channelID, messageID, name string) (threadID string, err error)
	// CreatePublicThread attaches a public thread to an existing message,
	// used for summary discussion.
	CreatePublicThread(ctx context.Context, channelID, messageID, name string) (threadID string, err error)
	// OpenDMChannel resolves (or opens) a DM channel with the given
	// external user ID, returning a channel ID usable with SendMessage.
	OpenDMChannel(ctx context.Context, externalUserID string) (channelID string, err error)
	// SendDM is a convenience wrapper that opens a DM channel and sends
	// msg to it. Returns ErrForbidden if the recipient has opted out.
	SendDM(ctx context.Context, externalUserID string, msg OutboundMessage) error
}

// MemberJoined corresponds to spec.md §6.1's "member joined" event.
type MemberJoined struct {
	GuildID        int64
	ExternalUserID string
	IsBot          bool
	JoinedAt       time.Time
}

// MessageCreated corresponds to "message created (non-bot, in guild)".
type MessageCreated struct {
	GuildID        int64
	ExternalUserID string
	ChannelID      string
	CreatedAt      time.Time
}

// ReactionAdded corresponds to "raw reaction added (in guild)".
type ReactionAdded struct {
	GuildID            int64
	ReactorExternalID  string
	AuthorExternalID   string
	CreatedAt          time.Time
}

// VoiceTransition is one open/close/roll edge of a voice session.
type VoiceTransition string

const (
	VoiceOpened VoiceTransition = "opened"
	VoiceClosed VoiceTransition = "closed"
	VoiceRolled VoiceTransition = "rolled"
)

// VoiceStateUpdate corresponds to "voice state update".
type VoiceStateUpdate struct {
	GuildID        int64
	ExternalUserID string
	Transition     VoiceTransition
	At             time.Time
}

// RoleChange corresponds to "role change on member".
type RoleChange struct {
	GuildID        int64
	ExternalUserID string
	RoleIDs        []string
}

// GuildJoined corresponds to "guild joined".
type GuildJoined struct {
	GuildID              int64
	NonBotExternalUserIDs []string
}

// GuildRemoved corresponds to "guild removed".
type GuildRemoved struct {
	GuildID int64
}

// Inbound is the set of chat events the core reacts to, per spec.md
// §6.1. A real gateway transport implementation would translate its
// native event types into calls against this interface; guildcache.Cache
// implements it.
type Inbound interface {
	OnMemberJoined(ctx context.Context, ev MemberJoined) error
	OnMessageCreated(ctx context.Context, ev MessageCreated) error
	OnReactionAdded(ctx context.Context, ev ReactionAdded) error
	OnVoiceStateUpdate(ctx context.Context, ev VoiceStateUpdate) error
	OnRoleChange(ctx context.Context, ev RoleChange) error
	OnGuildJoined(ctx context.Context, ev GuildJoined) error
	OnGuildRemoved(ctx context.Context, ev GuildRemoved) error
}
