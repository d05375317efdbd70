// Package guildcache implements the per-guild in-memory state engine and
// dirty-write flush loop from spec.md §4.1, fused from the teacher's
// presence.Manager (a per-tenant map[tenant]map[id]*T guarded by a
// mutex, refreshed by a ticking background loop) and its
// notification.EmailWorker (ticker-driven batch drain with per-item
// failure isolation and accumulated counters).
package guildcache

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/nonagon/core/internal/clock"
	"github.com/nonagon/core/internal/domain/character"
	"github.com/nonagon/core/internal/domain/quest"
	"github.com/nonagon/core/internal/domain/summary"
	"github.com/nonagon/core/internal/domain/user"
	"github.com/nonagon/core/internal/gateway"
	"github.com/nonagon/core/internal/postalid"
)

// GuildEntry is one tenant's live state: `{db_handle, users, quests,
// characters, summaries}` per spec.md §4.1.
type GuildEntry struct {
	GuildID int64
	DB      *sql.DB

	mu         sync.RWMutex
	users      map[string]*user.User // external (discord) ID -> User
	quests     map[string]*quest.Quest
	characters map[string]*character.Character
	summaries  map[string]*summary.Summary

	voiceSessions map[string]time.Time // external user ID -> session open time
}

func newGuildEntry(guildID int64, db *sql.DB) *GuildEntry {
	return &GuildEntry{
		GuildID:       guildID,
		DB:            db,
		users:         map[string]*user.User{},
		quests:        map[string]*quest.Quest{},
		characters:    map[string]*character.Character{},
		summaries:     map[string]*summary.Summary{},
		voiceSessions: map[string]time.Time{},
	}
}

// DirtyKey identifies a user document pending a durable write.
type DirtyKey struct {
	GuildID        int64
	ExternalUserID string
}

// Metrics receives flush-loop observations, per spec.md §4.1's
// `{dirty_qsize, batch, duration_ms}` metrics.
type Metrics interface {
	ObserveFlush(dirtyQueueSize, batchSize int, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveFlush(int, int, time.Duration) {}

// Adapter is the synchronous remote-persistence path selected by
// flush_via_adapter=true (spec.md §4.1). Each call runs on a goroutine
// drawn from a bounded worker pool; the flush loop waits for its result
// or for context cancellation.
type Adapter interface {
	UpsertUser(ctx context.Context, guildID int64, u *user.User) error
}

// DBOpener opens (and migrates) a tenant's database on first touch.
type DBOpener func(guildID int64) (*sql.DB, error)

// Cache is the per-process guild-cache + dirty-flush engine.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]*GuildEntry

	openDB DBOpener

	dirtyMu sync.Mutex
	dirty   []DirtyKey

	viaAdapter   bool
	adapter      Adapter
	flushWorkers chan struct{} // bounds adapter-path concurrency

	clock    clock.Clock
	metrics  Metrics
	outbound gateway.Outbound

	refereeRoleOf func(guildID int64) string

	totalBatches uint64
	totalItems   uint64
	lastDuration time.Duration
	totalErrors  uint64

	statsMu sync.Mutex
}

// Options configures a Cache.
type Options struct {
	OpenDB       DBOpener
	ViaAdapter   bool
	Adapter      Adapter
	WorkerPoolN  int
	Clock        clock.Clock
	Metrics      Metrics
	Outbound     gateway.Outbound
	// RefereeRoleOf resolves the tenant's configured "referee role" ID
	// (from the settings store) for OnRoleChange mirroring. A nil func
	// disables mirroring.
	RefereeRoleOf func(guildID int64) string
}

// New builds a Cache. OpenDB is required; everything else has a sane
// default.
func New(opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = clock.Real
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.WorkerPoolN <= 0 {
		opts.WorkerPoolN = 4
	}
	return &Cache{
		entries:      map[int64]*GuildEntry{},
		openDB:       opts.OpenDB,
		viaAdapter:   opts.ViaAdapter,
		adapter:      opts.Adapter,
		flushWorkers: make(chan struct{}, opts.WorkerPoolN),
		clock:        opts.Clock,
		metrics:      opts.Metrics,
		outbound:     opts.Outbound,
		refereeRoleOf: opts.RefereeRoleOf,
	}
}

// EnsureGuildEntry returns the tenant's entry, creating and opening its
// database on first touch. Idempotent, per spec.md §4.1.
func (c *Cache) EnsureGuildEntry(guildID int64) (*GuildEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[guildID]
	c.mu.RUnlock()
	if ok {
		return entry, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[guildID]; ok {
		return entry, nil
	}

	db, err := c.openDB(guildID)
	if err != nil {
		return nil, err
	}
	entry = newGuildEntry(guildID, db)
	c.entries[guildID] = entry
	return entry, nil
}

// GuildIDs returns every tenant currently touched by this process, for
// the announcement scheduler (§4.3) to iterate "all tenants once per
// minute" without a separate tenant registry.
func (c *Cache) GuildIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int64, 0, len(c.entries))
	for id := range c.entries {
		out = append(out, id)
	}
	return out
}

// DropGuildEntry removes a tenant's cache entry, per the "guild removed"
// inbound event (§6.1). It does not close the database; callers that own
// the database lifecycle (internal/database.Manager) do that separately.
func (c *Cache) DropGuildEntry(guildID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, guildID)
}

func (c *Cache) guildEntryOrNil(guildID int64) *GuildEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[guildID]
}

// enqueueDirty appends a key to the unbounded FIFO dirty queue.
func (c *Cache) enqueueDirty(guildID int64, externalUserID string) {
	c.dirtyMu.Lock()
	c.dirty = append(c.dirty, DirtyKey{GuildID: guildID, ExternalUserID: externalUserID})
	c.dirtyMu.Unlock()
}

// DirtyQueueSize reports the current (unflushed) queue length.
func (c *Cache) DirtyQueueSize() int {
	c.dirtyMu.Lock()
	defer c.dirtyMu.Unlock()
	return len(c.dirty)
}

// drainDirty non-blockingly empties the dirty queue and returns it,
// leaving the queue empty for subsequent enqueues.
func (c *Cache) drainDirty() []DirtyKey {
	c.dirtyMu.Lock()
	defer c.dirtyMu.Unlock()
	if len(c.dirty) == 0 {
		return nil
	}
	drained := c.dirty
	c.dirty = nil
	return drained
}

// Stats is a snapshot of the flush loop's lifetime accumulators.
type Stats struct {
	TotalBatches uint64
	TotalItems   uint64
	LastDuration time.Duration
	TotalErrors  uint64
}

// Stats returns the flush loop's accumulated counters.
func (c *Cache) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return Stats{
		TotalBatches: c.totalBatches,
		TotalItems:   c.totalItems,
		LastDuration: c.lastDuration,
		TotalErrors:  c.totalErrors,
	}
}

// FlushOnce drains the dirty queue, coalesces duplicate keys
// last-writer-wins, and persists each remaining user via the configured
// path. It never returns an error: per-item failures are logged and
// counted, never abort the batch (spec.md §4.1).
func (c *Cache) FlushOnce(ctx context.Context, logger *slog.Logger) {
	start := c.clock.Now()
	queueSizeBefore := c.DirtyQueueSize()
	drained := c.drainDirty()

	// Coalesce: last occurrence of each (guild,user) key wins.
	coalesced := map[DirtyKey]*user.User{}
	order := make([]DirtyKey, 0, len(drained))
	seen := map[DirtyKey]bool{}
	for _, key := range drained {
		entry := c.guildEntryOrNil(key.GuildID)
		if entry == nil {
			continue // guild cache has since vanished; skip per spec.md §4.1
		}
		entry.mu.RLock()
		u, ok := entry.users[key.ExternalUserID]
		entry.mu.RUnlock()
		if !ok {
			continue // user has since vanished; skip
		}
		if !seen[key] {
			seen[key] = true
			order = append(order, key)
		}
		coalesced[key] = u
	}

	var errCount int
	for _, key := range order {
		u := coalesced[key]
		if err := c.persist(ctx, key.GuildID, u); err != nil {
			errCount++
			if em, ok := c.metrics.(interface{ ObserveFlushError() }); ok {
				em.ObserveFlushError()
			}
			logger.Warn("guildcache: flush failed for user",
				"error", err, "guild_id", key.GuildID, "external_user_id", key.ExternalUserID)
		}
	}

	duration := c.clock.Now().Sub(start)

	c.statsMu.Lock()
	c.totalBatches++
	c.totalItems += uint64(len(order))
	c.lastDuration = duration
	c.totalErrors += uint64(errCount)
	c.statsMu.Unlock()

	c.metrics.ObserveFlush(queueSizeBefore, len(order), duration)
}

func (c *Cache) persist(ctx context.Context, guildID int64, u *user.User) error {
	if c.viaAdapter && c.adapter != nil {
		return c.persistViaAdapter(ctx, guildID, u)
	}
	entry := c.guildEntryOrNil(guildID)
	if entry == nil || entry.DB == nil {
		return nil
	}
	repo := user.NewRepository(entry.DB)
	return repo.Upsert(ctx, u)
}

// persistViaAdapter dispatches the adapter call onto the bounded worker
// pool, per spec.md §4.1's "flush_via_adapter=true" path. The calling
// goroutine waits for a free worker slot and then for the adapter's
// result, returning early only if ctx is cancelled.
func (c *Cache) persistViaAdapter(ctx context.Context, guildID int64, u *user.User) error {
	done := make(chan error, 1)
	c.flushWorkers <- struct{}{}
	go func() {
		defer func() { <-c.flushWorkers }()
		done <- c.adapter.UpsertUser(ctx, guildID, u)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunFlushLoop is the single long-lived flush task from spec.md §4.1/§5.
// It ticks every interval, calling FlushOnce, until ctx is cancelled. A
// cancelled context lets in-flight batches complete best-effort before
// returning, per §5's shutdown guarantee.
func (c *Cache) RunFlushLoop(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("guildcache: flush loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("guildcache: flush loop stopping")
			return
		case <-ticker.C:
			c.FlushOnce(ctx, logger)
		}
	}
}

// MutateUser performs a read-modify-write against the cached user
// identified by externalUserID within guildID's entry, creating a
// default user first if absent, then enqueues it on the dirty queue iff
// fn reports a change. fn must not perform any blocking call (§5's
// "read-modify-write in one cooperative step" rule).
func (c *Cache) MutateUser(guildID int64, externalUserID string, ensureUserID func() (postalid.UserID, error), fn func(u *user.User) (changed bool)) error {
	entry, err := c.EnsureGuildEntry(guildID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	u, ok := entry.users[externalUserID]
	if !ok {
		id, err := ensureUserID()
		if err != nil {
			return err
		}
		u = user.New(id, guildID, externalUserID, c.clock.Now())
		entry.users[externalUserID] = u
	}

	if fn(u) {
		c.enqueueDirty(guildID, externalUserID)
	}
	return nil
}

// LoadUsers returns a snapshot of every cached user for a tenant.
func (g *GuildEntry) LoadUsers() []*user.User {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*user.User, 0, len(g.users))
	for _, u := range g.users {
		out = append(out, u)
	}
	return out
}

// SeedUser inserts u into the cache without enqueuing a dirty write,
// used by the initial-load path (LoadGuild in load.go) which persists
// before caching.
func (g *GuildEntry) SeedUser(externalUserID string, u *user.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.users[externalUserID] = u
}

// UserByExternalID returns the cached user, if any.
func (g *GuildEntry) UserByExternalID(externalUserID string) (*user.User, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	u, ok := g.users[externalUserID]
	return u, ok
}
