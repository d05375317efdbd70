// Package scheduler implements the deferred announcement scheduler from
// spec.md §4.3: a single recurring task that scans every tenant once a
// minute for quests whose announce_at has elapsed and whose announcement
// has not yet been published, and publishes them. It is the same
// ticker-loop shape as guildcache's flush loop (itself grounded on the
// teacher's notification.EmailWorker), scanning tenants instead of a
// single pending-email table.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nonagon/core/internal/clock"
	"github.com/nonagon/core/internal/domain/quest"
	"github.com/nonagon/core/internal/gateway"
	"github.com/nonagon/core/internal/guildcache"
	"github.com/nonagon/core/internal/settings"
)

// Interval is the fixed scan cadence from spec.md §4.3 ("once per
// minute").
const Interval = time.Minute

// Metrics receives per-tick publish counts.
type Metrics interface {
	ObserveScheduler(tenantsScanned, published, errored int, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveScheduler(int, int, int, time.Duration) {}

// Scheduler is the single process-wide deferred-announcement loop.
type Scheduler struct {
	cache             *guildcache.Cache
	outbound          gateway.Outbound
	clock             clock.Clock
	metrics           Metrics
	fallbackChannelID string
}

// Options configures a Scheduler.
type Options struct {
	Cache    *guildcache.Cache
	Outbound gateway.Outbound
	Clock    clock.Clock
	Metrics  Metrics
	// FallbackChannelID is the process-wide quest_board_channel_id used
	// when a tenant has not configured its own announcement channel
	// (spec.md §6.5).
	FallbackChannelID string
}

func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.Real
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	return &Scheduler{
		cache:             opts.Cache,
		outbound:          opts.Outbound,
		clock:             opts.Clock,
		metrics:           opts.Metrics,
		fallbackChannelID: opts.FallbackChannelID,
	}
}

// Run is the single recurring task per process from spec.md §5. It ticks
// every Interval, calling Tick, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	logger.Info("scheduler: announcement loop started", "interval", Interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler: announcement loop stopping")
			return
		case <-ticker.C:
			s.Tick(ctx, logger)
		}
	}
}

// Tick scans every tenant once for quests ready to publish. Any error
// publishing a single quest is logged and does not halt iteration over
// the remaining tenants or quests, per spec.md §4.3/§5.
func (s *Scheduler) Tick(ctx context.Context, logger *slog.Logger) {
	start := s.clock.Now()
	var published, errored, scanned int

	for _, guildID := range s.cache.GuildIDs() {
		scanned++
		n, err := s.tickGuild(ctx, guildID, logger)
		published += n
		if err != nil {
			errored++
			logger.Warn("scheduler: tenant scan failed", "error", err, "guild_id", guildID)
		}
	}

	s.metrics.ObserveScheduler(scanned, published, errored, s.clock.Now().Sub(start))
}

func (s *Scheduler) tickGuild(ctx context.Context, guildID int64, logger *slog.Logger) (int, error) {
	entry, err := s.cache.EnsureGuildEntry(guildID)
	if err != nil {
		return 0, fmt.Errorf("opening tenant database: %w", err)
	}
	repo := quest.NewRepository(entry.DB)

	pending, err := repo.ListPendingAnnouncements(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("listing pending announcements: %w", err)
	}

	now := s.clock.Now()
	published := 0
	for _, q := range pending {
		if q.AnnounceAt == nil || q.AnnounceAt.After(now) {
			continue
		}
		if q.Status != quest.StatusDraft && q.Status != quest.StatusAnnounced {
			continue
		}
		if q.Announcement.IsPublished() {
			continue // already published; a racing scheduler got there first (§4.3)
		}
		if err := s.publishOne(ctx, repo, entry.DB, guildID, q, now); err != nil {
			logger.Warn("scheduler: failed to publish quest", "error", err, "guild_id", guildID, "quest_id", q.QuestID.String())
			continue
		}
		published++
		logger.Info("scheduler: published scheduled quest", "guild_id", guildID, "quest_id", q.QuestID.String(), "channel_id", q.Announcement.ChannelID)
	}
	return published, nil
}

// publishOne performs a single quest's "publish-now" transition (§4.2),
// sending the announcement message before persisting so that channel_id
// is set at the earliest possible moment — the at-least-once/no-dedup
// guarantee from §4.3 rests on the channel assignment happening before
// or atomically with the successful return, not after.
func (s *Scheduler) publishOne(ctx context.Context, repo *quest.Repository, db *sql.DB, guildID int64, q *quest.Quest, now time.Time) error {
	channelID := s.resolveChannel(ctx, db, guildID)
	if channelID == "" {
		return fmt.Errorf("no announcement channel configured for guild %d", guildID)
	}

	messageID, err := s.outbound.SendMessage(ctx, channelID, renderAnnouncement(q))
	if err != nil {
		return fmt.Errorf("sending announcement: %w", err)
	}

	if err := q.PublishNow(q.RefereeID, true, channelID, messageID, "", now); err != nil {
		return fmt.Errorf("transitioning quest to announced: %w", err)
	}

	if err := repo.Upsert(ctx, q); err != nil {
		return fmt.Errorf("persisting announced quest: %w", err)
	}
	return nil
}

// resolveChannel prefers the tenant's own announcement channel, read
// from its own database (the settings table is per-tenant, per
// spec.md §6.4/§6.5), falling back to the process-wide default.
func (s *Scheduler) resolveChannel(ctx context.Context, db *sql.DB, guildID int64) string {
	store := settings.NewStore(db)
	if cfg, err := store.Get(ctx, guildID); err == nil && cfg.AnnouncementChannelID != "" {
		return cfg.AnnouncementChannelID
	}
	return s.fallbackChannelID
}

func renderAnnouncement(q *quest.Quest) gateway.OutboundMessage {
	fields := []gateway.EmbedField{
		{Name: "Starts", Value: q.StartingAt.Format(time.RFC1123), Inline: true},
		{Name: "Duration", Value: q.Duration.String(), Inline: true},
	}
	if len(q.Tags) > 0 {
		fields = append(fields, gateway.EmbedField{Name: "Tags", Value: fmt.Sprint(q.Tags)})
	}
	return gateway.OutboundMessage{
		Embed: &gateway.Embed{
			Title:       q.Title,
			Description: q.Description,
			ImageURL:    q.ImageURL,
			Fields:      fields,
			Footer:      "Sign-ups are open",
		},
	}
}
