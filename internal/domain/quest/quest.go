// Package quest implements the Quest entity, its lifecycle state machine,
// and the sign-up adjudication sub-machine from spec.md §3, §4.2 and §8.
package quest

import (
	"fmt"
	"time"

	"github.com/nonagon/core/internal/postalid"
	"github.com/nonagon/core/internal/resulterr"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusAnnounced Status = "ANNOUNCED"
	StatusStarted   Status = "STARTED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// NudgeCooldown is the minimum interval between successful nudges on the
// same quest, per spec.md §4.2/§8 invariant 6.
const NudgeCooldown = 48 * time.Hour

// SignUpStatus is the state of a single player's sign-up request.
type SignUpStatus string

const (
	SignUpApplied  SignUpStatus = "APPLIED"
	SignUpSelected SignUpStatus = "SELECTED"
)

// PlayerSignUp is one player's request to join a quest with a specific
// character.
type PlayerSignUp struct {
	UserID      postalid.UserID
	CharacterID postalid.CharacterID
	Status      SignUpStatus
}

// Coordinates mirrors character.Coordinates; duplicated here (rather than
// imported) to keep the quest package free of a dependency on the
// character package — both are leaf domain packages referenced only by
// ID.
type Coordinates struct {
	ChannelID string
	MessageID string
	ThreadID  string
}

func (c Coordinates) IsPublished() bool { return c.ChannelID != "" && c.MessageID != "" }

// Quest is a single campaign session, draft through completion.
type Quest struct {
	QuestID      postalid.QuestID
	GuildID      int64
	RefereeID    postalid.UserID
	Announcement Coordinates

	Title       string
	Description string
	Tags        []string
	ImageURL    string
	RawMarkdown string

	StartingAt time.Time
	Duration   time.Duration

	Status Status

	AnnounceAt   *time.Time
	StartedAt    *time.Time
	EndedAt      *time.Time
	LastNudgedAt *time.Time

	signupsClosed bool

	LinkedCharacterIDs []postalid.CharacterID
	LinkedUserIDs      []postalid.UserID

	SignUps []PlayerSignUp
}

// New builds a DRAFT quest.
func New(id postalid.QuestID, guildID int64, referee postalid.UserID, title string, startingAt time.Time, duration time.Duration) *Quest {
	return &Quest{
		QuestID:    id,
		GuildID:    guildID,
		RefereeID:  referee,
		Title:      title,
		StartingAt: startingAt,
		Duration:   duration,
		Status:     StatusDraft,
	}
}

// IsSignupOpen is the derived flag from spec.md §3: true while status is
// ANNOUNCED and signups have not been explicitly closed.
func (q *Quest) IsSignupOpen() bool {
	return q.Status == StatusAnnounced && !q.signupsClosed
}

func (q *Quest) isTerminal() bool {
	return q.Status == StatusCompleted || q.Status == StatusCancelled
}

func isReferee(q *Quest, caller postalid.UserID) bool {
	return q.RefereeID == caller
}

// PublishNow transitions DRAFT → ANNOUNCED, per the "publish-now" row of
// spec.md §4.2's transition table. The caller must be the quest's referee
// or a staff member; staff authorization is the caller's responsibility
// to have already checked (this package has no notion of staff role
// membership, which lives in settings/guildcache).
func (q *Quest) PublishNow(caller postalid.UserID, isStaff bool, channelID, messageID, threadID string, now time.Time) error {
	if q.isTerminal() {
		return resulterr.Conflictf("this quest has already ended and cannot be published")
	}
	if q.Status != StatusDraft {
		return resulterr.Conflictf("only a draft quest can be published")
	}
	if !isReferee(q, caller) && !isStaff {
		return resulterr.Authorizationf("only the quest's referee or staff may publish it")
	}
	if channelID == "" {
		return resulterr.Validationf("no announcement channel is configured")
	}
	q.Status = StatusAnnounced
	q.Announcement = Coordinates{ChannelID: channelID, MessageID: messageID, ThreadID: threadID}
	q.AnnounceAt = nil
	return nil
}

// Schedule sets a future announce_at for a DRAFT quest, per the
// "schedule(t)" row of spec.md §4.2's transition table.
func (q *Quest) Schedule(t time.Time, now time.Time) error {
	if q.isTerminal() {
		return resulterr.Conflictf("this quest has already ended")
	}
	if q.Status != StatusDraft {
		return resulterr.Conflictf("only a draft quest can be scheduled")
	}
	if !t.After(now) {
		return resulterr.Validationf("scheduled announcement time must be in the future")
	}
	q.AnnounceAt = &t
	return nil
}

// Start transitions ANNOUNCED → STARTED. Caller must be the referee.
func (q *Quest) Start(caller postalid.UserID, now time.Time) error {
	if q.isTerminal() {
		return resulterr.Conflictf("this quest has already ended")
	}
	if q.Status != StatusAnnounced {
		return resulterr.Conflictf("only an announced quest can be started")
	}
	if !isReferee(q, caller) {
		return resulterr.Authorizationf("only the quest's referee may start it")
	}
	q.Status = StatusStarted
	q.StartedAt = &now
	return nil
}

// Complete transitions STARTED or ANNOUNCED → COMPLETED and sets
// EndedAt. Caller must be the referee. It returns only an error; summary
// reminders are not sent from here.
func (q *Quest) Complete(caller postalid.UserID, now time.Time) error {
	if q.isTerminal() {
		return resulterr.Conflictf("this quest has already ended")
	}
	if q.Status != StatusStarted && q.Status != StatusAnnounced {
		return resulterr.Conflictf("only a started or announced quest can be completed")
	}
	if !isReferee(q, caller) {
		return resulterr.Authorizationf("only the quest's referee may complete it")
	}
	q.Status = StatusCompleted
	q.EndedAt = &now
	return nil
}

// Cancel transitions any non-terminal status → CANCELLED. Caller must be
// the referee or staff.
func (q *Quest) Cancel(caller postalid.UserID, isStaff bool, now time.Time) error {
	if q.isTerminal() {
		return nil // cancel on an already-terminal quest is a no-op, not an error
	}
	if !isReferee(q, caller) && !isStaff {
		return resulterr.Authorizationf("only the quest's referee or staff may cancel it")
	}
	q.Status = StatusCancelled
	q.EndedAt = &now
	return nil
}

// Nudge re-sends the announcement. Caller must be the referee; the quest
// must already be published; and at least NudgeCooldown must have elapsed
// since the last successful nudge, per spec.md §4.2/§8 invariant 6.
func (q *Quest) Nudge(caller postalid.UserID, now time.Time) error {
	if !isReferee(q, caller) {
		return resulterr.Authorizationf("only the quest's referee may nudge it")
	}
	if !q.Announcement.IsPublished() {
		return resulterr.Conflictf("this quest has not been announced yet")
	}
	if q.LastNudgedAt != nil {
		elapsed := now.Sub(*q.LastNudgedAt)
		if elapsed < NudgeCooldown {
			remaining := NudgeCooldown - elapsed
			return resulterr.Conflictf("you can nudge this quest again in %s", formatRemaining(remaining))
		}
	}
	q.LastNudgedAt = &now
	return nil
}

// formatRemaining renders a duration as whole hours (rounded up), e.g.
// "1h", matching spec.md §8's S3 scenario ("rejects with message
// containing '1h'" at t0+47h, i.e. 1 hour remaining).
func formatRemaining(d time.Duration) string {
	hours := d / time.Hour
	if d%time.Hour > 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return fmt.Sprintf("%dh", hours)
}

// --- Sign-up sub-machine ---------------------------------------------------

const errAlreadySignedUp = "You already requested to join this quest."

func (q *Quest) findSignup(u postalid.UserID) int {
	for i := range q.SignUps {
		if q.SignUps[i].UserID == u {
			return i
		}
	}
	return -1
}

// AddSignup records a player's request to join with a given character.
// Requires signups to be open, the user to hold PLAYER, and the user to
// own the character. The caller determines role membership and character
// ownership and passes them in as hasPlayerRole and ownsCharacter; this
// method rejects the sign-up when either is false, and also enforces the
// state-machine and duplicate-signup invariants.
func (q *Quest) AddSignup(u postalid.UserID, hasPlayerRole bool, ownsCharacter bool, c postalid.CharacterID) error {
	if !q.IsSignupOpen() {
		return resulterr.Conflictf("sign-ups are not currently open for this quest")
	}
	if !hasPlayerRole {
		return resulterr.Authorizationf("you must have the player role to sign up")
	}
	if !ownsCharacter {
		return resulterr.Authorizationf("you can only sign up with a character you own")
	}
	if q.findSignup(u) >= 0 {
		return resulterr.Conflictf(errAlreadySignedUp)
	}
	q.SignUps = append(q.SignUps, PlayerSignUp{UserID: u, CharacterID: c, Status: SignUpApplied})
	return nil
}

// SelectSignup promotes an existing sign-up to SELECTED without
// reordering the list.
func (q *Quest) SelectSignup(u postalid.UserID) error {
	i := q.findSignup(u)
	if i < 0 {
		return resulterr.NotFoundf("no sign-up found for that player")
	}
	q.SignUps[i].Status = SignUpSelected
	return nil
}

// RemoveSignup removes an existing sign-up.
func (q *Quest) RemoveSignup(u postalid.UserID) error {
	i := q.findSignup(u)
	if i < 0 {
		return resulterr.NotFoundf("no sign-up found for that player")
	}
	q.SignUps = append(q.SignUps[:i], q.SignUps[i+1:]...)
	return nil
}

// CloseSignups flips signupsClosed to true. Idempotent.
func (q *Quest) CloseSignups() {
	q.signupsClosed = true
}

// SignupsClosed reports whether CloseSignups has been called, for
// serialisation.
func (q *Quest) SignupsClosed() bool { return q.signupsClosed }

// SetSignupsClosed is used by the repository layer when rehydrating a
// quest from storage.
func (q *Quest) SetSignupsClosed(closed bool) { q.signupsClosed = closed }

// PendingSignups returns signups not yet SELECTED, in insertion order,
// per spec.md §4.2 ("pending signups are presented ... in insertion
// order").
func (q *Quest) PendingSignups() []PlayerSignUp {
	var out []PlayerSignUp
	for _, s := range q.SignUps {
		if s.Status != SignUpSelected {
			out = append(out, s)
		}
	}
	return out
}

// Validate enumerates every constraint on a Quest, per spec.md §4.5.
func (q *Quest) Validate() error {
	if q.QuestID.IsZero() {
		return resulterr.Validationf("quest_id is required")
	}
	if q.GuildID == 0 {
		return resulterr.Validationf("guild_id is required")
	}
	if q.RefereeID.IsZero() {
		return resulterr.Validationf("referee_id is required")
	}
	if q.Title == "" {
		return resulterr.Validationf("title is required")
	}
	if q.Duration <= 0 {
		return resulterr.Validationf("duration must be positive")
	}
	switch q.Status {
	case StatusDraft, StatusAnnounced, StatusStarted, StatusCompleted, StatusCancelled:
	default:
		return resulterr.Validationf("invalid quest status %q", q.Status)
	}
	seen := map[postalid.UserID]bool{}
	for _, s := range q.SignUps {
		if seen[s.UserID] {
			return resulterr.Validationf(errAlreadySignedUp)
		}
		seen[s.UserID] = true
		switch s.Status {
		case SignUpApplied, SignUpSelected:
		default:
			return resulterr.Validationf("invalid sign-up status %q", s.Status)
		}
	}
	return nil
}
