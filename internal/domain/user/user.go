// Package user implements the User entity: roles, player/referee
// sub-profiles, engagement counters, and the role/profile consistency
// invariants from spec.md §3 and §8.
package user

import (
	"time"

	"github.com/nonagon/core/internal/postalid"
	"github.com/nonagon/core/internal/resulterr"
)

// Role is one of the roles a guild member can hold in the domain.
type Role string

const (
	RoleMember   Role = "MEMBER"
	RolePlayer   Role = "PLAYER"
	RoleReferee  Role = "REFEREE"
)

// CollabStat accumulates how often and how long two entities have played
// together, keyed by the other party's ID in the maps below.
type CollabStat struct {
	Count int
	Hours float64
}

// PlayerProfile is present whenever a User holds the PLAYER role.
type PlayerProfile struct {
	CharacterIDs []postalid.CharacterID
	PlayHistory  []postalid.QuestID
	// Collab maps a fellow player-owned character this user has shared a
	// quest with to how often and how long.
	Collab map[postalid.CharacterID]CollabStat
}

// RefereeProfile is present whenever a User holds the REFEREE role.
type RefereeProfile struct {
	HostedQuestIDs []postalid.QuestID
	// Collab maps a player this referee has hosted to how often and how
	// long.
	Collab map[postalid.UserID]CollabStat
}

// User is a guild member's domain record.
type User struct {
	UserID    postalid.UserID
	DiscordID string // external platform ID; empty if never linked
	GuildID   int64

	Roles map[Role]bool

	HasServerTag bool
	DMOptIn      bool

	JoinedAt     time.Time
	LastActiveAt time.Time

	MessagesCount      int64
	ReactionsGiven     int64
	ReactionsReceived  int64
	VoiceSeconds       int64

	Player  *PlayerProfile
	Referee *RefereeProfile
}

// New builds a default User for the given tenant, as created by the
// member-joined gateway event or the guild-bootstrap member scrape.
func New(id postalid.UserID, guildID int64, discordID string, now time.Time) *User {
	return &User{
		UserID:       id,
		DiscordID:    discordID,
		GuildID:      guildID,
		Roles:        map[Role]bool{RoleMember: true},
		JoinedAt:     now,
		LastActiveAt: now,
	}
}

// HasRole reports whether the user currently holds role.
func (u *User) HasRole(role Role) bool { return u.Roles[role] }

// EnablePlayer grants the PLAYER role, creating a PlayerProfile if absent.
// Idempotent: calling it again while already PLAYER does not reset the
// existing profile.
func (u *User) EnablePlayer() {
	if u.Roles == nil {
		u.Roles = map[Role]bool{}
	}
	u.Roles[RolePlayer] = true
	if u.Player == nil {
		u.Player = &PlayerProfile{Collab: map[postalid.CharacterID]CollabStat{}}
	}
}

// DisablePlayer revokes PLAYER. It fails if REFEREE is still active,
// per spec.md §3/§8 invariant 5.
func (u *User) DisablePlayer() error {
	if !u.HasRole(RolePlayer) {
		return nil
	}
	if u.HasRole(RoleReferee) {
		return resulterr.Validationf("cannot disable the player role while the referee role is active")
	}
	delete(u.Roles, RolePlayer)
	u.Player = nil
	return nil
}

// EnableReferee grants REFEREE and implies EnablePlayer, per spec.md §8
// invariant 5.
func (u *User) EnableReferee() {
	u.EnablePlayer()
	if u.Roles == nil {
		u.Roles = map[Role]bool{}
	}
	u.Roles[RoleReferee] = true
	if u.Referee == nil {
		u.Referee = &RefereeProfile{Collab: map[postalid.UserID]CollabStat{}}
	}
}

// DisableReferee revokes REFEREE without touching PLAYER.
func (u *User) DisableReferee() {
	delete(u.Roles, RoleReferee)
	u.Referee = nil
}

// MirrorRefereeRole computes the resulting role set when an external
// "referee role" grant/revoke event arrives from the chat gateway
// (spec.md §6.1: "if a configured referee role is gained/lost, mirror to
// the domain REFEREE role"). It is a pure function over the current role
// set so the mirroring logic can be tested without a User instance.
func MirrorRefereeRole(hasExternalRole bool, roles map[Role]bool) map[Role]bool {
	out := map[Role]bool{}
	for r, v := range roles {
		out[r] = v
	}
	if hasExternalRole {
		out[RolePlayer] = true
		out[RoleReferee] = true
	} else {
		delete(out, RoleReferee)
	}
	return out
}

// ApplyExternalRefereeRole applies the result of MirrorRefereeRole to u,
// creating or clearing the RefereeProfile/PlayerProfile as needed.
func (u *User) ApplyExternalRefereeRole(hasExternalRole bool) {
	if hasExternalRole {
		u.EnableReferee()
		return
	}
	u.DisableReferee()
}

// Validate enumerates every constraint on a User, per spec.md §4.5:
// total, side-effect free, and returns the first violation.
func (u *User) Validate() error {
	if u.UserID.IsZero() {
		return resulterr.Validationf("user_id is required")
	}
	if u.UserID.Kind() != postalid.KindUser {
		return resulterr.Validationf("user_id must have the USER prefix")
	}
	if u.GuildID == 0 {
		return resulterr.Validationf("guild_id is required")
	}
	if u.HasRole(RolePlayer) && u.Player == nil {
		return resulterr.Validationf("player role requires a player profile")
	}
	if u.HasRole(RoleReferee) && u.Referee == nil {
		return resulterr.Validationf("referee role requires a referee profile")
	}
	if u.HasRole(RoleReferee) && !u.HasRole(RolePlayer) {
		return resulterr.Validationf("referee role requires the player role")
	}
	return nil
}
