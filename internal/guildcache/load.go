package guildcache

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/nonagon/core/internal/domain/user"
	"github.com/nonagon/core/internal/postalid"
)

// MemberScraper supplies the gateway-visible member snapshot used to
// seed a tenant with no existing user documents, per spec.md §4.1's
// fallback ("scrape all non-bot members from the gateway snapshot").
type MemberScraper interface {
	NonBotMemberExternalIDs(ctx context.Context, guildID int64) ([]string, error)
}

// LoadGuild performs the initial-load path from spec.md §4.1: read every
// user document for the tenant (matching guild_id, or any document if
// that field is absent — the legacy fallback); each document whose
// external ID is numeric becomes a cache entry keyed by that integer,
// others are skipped with debug logging. If no documents exist, the
// tenant is seeded by scraping gateway-visible members.
func (c *Cache) LoadGuild(ctx context.Context, guildID int64, scraper MemberScraper, logger *slog.Logger) error {
	entry, err := c.EnsureGuildEntry(guildID)
	if err != nil {
		return err
	}

	repo := user.NewRepository(entry.DB)
	docs, err := repo.ListByGuild(ctx, guildID)
	if err != nil {
		return err
	}

	if len(docs) > 0 {
		for _, u := range docs {
			if _, err := strconv.ParseInt(u.DiscordID, 10, 64); err != nil {
				logger.Debug("guildcache: skipping user document with non-numeric external id",
					"guild_id", guildID, "user_id", u.UserID.String())
				continue
			}
			entry.SeedUser(u.DiscordID, u)
		}
		return nil
	}

	if scraper == nil {
		return nil
	}
	memberIDs, err := scraper.NonBotMemberExternalIDs(ctx, guildID)
	if err != nil {
		return err
	}
	for _, externalID := range memberIDs {
		id, err := postalid.GenerateUserID()
		if err != nil {
			logger.Warn("guildcache: failed to generate user id during seed", "error", err)
			continue
		}
		u := user.New(id, guildID, externalID, c.clock.Now())
		if err := repo.Upsert(ctx, u); err != nil {
			logger.Warn("guildcache: failed to persist seeded user", "error", err, "guild_id", guildID)
			continue
		}
		entry.SeedUser(externalID, u)
	}
	return nil
}
