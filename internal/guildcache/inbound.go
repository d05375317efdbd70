// inbound.go implements gateway.Inbound: the reactions to chat events
// from spec.md §6.1. Every mutation is a single cooperative
// read-modify-write followed by a dirty-queue enqueue, per §5's
// shared-resource policy.
package guildcache

import (
	"context"

	"github.com/nonagon/core/internal/domain/user"
	"github.com/nonagon/core/internal/gateway"
	"github.com/nonagon/core/internal/postalid"
)

var _ gateway.Inbound = (*Cache)(nil)

func (c *Cache) OnMemberJoined(_ context.Context, ev gateway.MemberJoined) error {
	if ev.IsBot {
		return nil
	}
	return c.MutateUser(ev.GuildID, ev.ExternalUserID, postalid.GenerateUserID, func(u *user.User) bool {
		return true // newly created or already present; either way, ensure it is flushed
	})
}

func (c *Cache) OnMessageCreated(_ context.Context, ev gateway.MessageCreated) error {
	return c.MutateUser(ev.GuildID, ev.ExternalUserID, postalid.GenerateUserID, func(u *user.User) bool {
		u.MessagesCount++
		u.LastActiveAt = ev.CreatedAt
		return true
	})
}

func (c *Cache) OnReactionAdded(_ context.Context, ev gateway.ReactionAdded) error {
	if err := c.MutateUser(ev.GuildID, ev.ReactorExternalID, postalid.GenerateUserID, func(u *user.User) bool {
		u.ReactionsGiven++
		return true
	}); err != nil {
		return err
	}
	if ev.AuthorExternalID == "" || ev.AuthorExternalID == ev.ReactorExternalID {
		return nil
	}
	return c.MutateUser(ev.GuildID, ev.AuthorExternalID, postalid.GenerateUserID, func(u *user.User) bool {
		u.ReactionsReceived++
		return true
	})
}

// OnVoiceStateUpdate opens, rolls, or closes a per-user voice session
// tracked in-memory (spec.md §6.1/SPEC_FULL §4 supplement). On close, the
// elapsed duration is added to the user's voice total and enqueued.
func (c *Cache) OnVoiceStateUpdate(_ context.Context, ev gateway.VoiceStateUpdate) error {
	entry, err := c.EnsureGuildEntry(ev.GuildID)
	if err != nil {
		return err
	}

	switch ev.Transition {
	case gateway.VoiceOpened:
		entry.mu.Lock()
		entry.voiceSessions[ev.ExternalUserID] = ev.At
		entry.mu.Unlock()
		return nil

	case gateway.VoiceRolled:
		entry.mu.Lock()
		opened, ok := entry.voiceSessions[ev.ExternalUserID]
		entry.voiceSessions[ev.ExternalUserID] = ev.At
		entry.mu.Unlock()
		if !ok {
			return nil
		}
		return c.addVoiceSeconds(ev.GuildID, ev.ExternalUserID, ev.At.Sub(opened))

	case gateway.VoiceClosed:
		entry.mu.Lock()
		opened, ok := entry.voiceSessions[ev.ExternalUserID]
		delete(entry.voiceSessions, ev.ExternalUserID)
		entry.mu.Unlock()
		if !ok {
			return nil
		}
		return c.addVoiceSeconds(ev.GuildID, ev.ExternalUserID, ev.At.Sub(opened))
	}
	return nil
}

func (c *Cache) addVoiceSeconds(guildID int64, externalUserID string, elapsed interface{ Seconds() float64 }) error {
	seconds := int64(elapsed.Seconds())
	if seconds <= 0 {
		return nil
	}
	return c.MutateUser(guildID, externalUserID, postalid.GenerateUserID, func(u *user.User) bool {
		u.VoiceSeconds += seconds
		return true
	})
}

// OnRoleChange mirrors a configured "referee role" gain/loss onto the
// domain REFEREE role, per spec.md §6.1. The referee role ID is resolved
// per-tenant via Options.RefereeRoleOf, set from the settings store.
func (c *Cache) OnRoleChange(_ context.Context, ev gateway.RoleChange) error {
	if c.refereeRoleOf == nil {
		return nil
	}
	refereeRoleID := c.refereeRoleOf(ev.GuildID)
	if refereeRoleID == "" {
		return nil
	}
	hasRole := false
	for _, r := range ev.RoleIDs {
		if r == refereeRoleID {
			hasRole = true
			break
		}
	}
	return c.MutateUser(ev.GuildID, ev.ExternalUserID, postalid.GenerateUserID, func(u *user.User) bool {
		before := u.HasRole(user.RoleReferee)
		u.ApplyExternalRefereeRole(hasRole)
		return before != u.HasRole(user.RoleReferee)
	})
}

func (c *Cache) OnGuildJoined(ctx context.Context, ev gateway.GuildJoined) error {
	entry, err := c.EnsureGuildEntry(ev.GuildID)
	if err != nil {
		return err
	}
	for _, externalID := range ev.NonBotExternalUserIDs {
		if _, ok := entry.UserByExternalID(externalID); ok {
			continue
		}
		id, err := postalid.GenerateUserID()
		if err != nil {
			continue
		}
		u := user.New(id, ev.GuildID, externalID, c.clock.Now())
		entry.SeedUser(externalID, u)
		c.enqueueDirty(ev.GuildID, externalID)
	}
	return nil
}

func (c *Cache) OnGuildRemoved(_ context.Context, ev gateway.GuildRemoved) error {
	c.DropGuildEntry(ev.GuildID)
	return nil
}
