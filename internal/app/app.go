// Package app wires together the per-tenant database manager, guild
// cache, scheduler, wizard manager, adjudication panel, settings store,
// and self-API client into one long-running process, following the
// teacher's internal/app.New(cfg) / Start(ctx) / Shutdown(ctx) shape.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nonagon/core/internal/adjudication"
	"github.com/nonagon/core/internal/clock"
	"github.com/nonagon/core/internal/config"
	"github.com/nonagon/core/internal/database"
	"github.com/nonagon/core/internal/domain/quest"
	"github.com/nonagon/core/internal/gateway"
	"github.com/nonagon/core/internal/guildcache"
	"github.com/nonagon/core/internal/questapi"
	"github.com/nonagon/core/internal/scheduler"
	"github.com/nonagon/core/internal/settings"
	"github.com/nonagon/core/internal/telemetry"
	"github.com/nonagon/core/internal/wizard"
)

// Application owns every long-lived component for one process: the
// tenant database manager, the guild cache and its flush loop, the
// announcement scheduler, the wizard session manager, and the self-API
// client used by the adjudication panel.
type Application struct {
	cfg *config.Config

	dbManager *database.Manager
	Cache     *guildcache.Cache
	Scheduler *scheduler.Scheduler
	Wizards   *wizard.Manager
	SelfAPI   *questapi.Client

	// Outbound is the chat-gateway port this process sends messages
	// through. The real transport is an excluded external collaborator
	// (spec.md §1); a caller embedding this process behind a real
	// gateway library supplies its own Outbound/Inbound adapter here
	// instead of the in-memory fake.
	Outbound gateway.Outbound

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs an Application from cfg. It does not start any
// background loop; call Start for that.
func New(cfg *config.Config, outbound gateway.Outbound) (*Application, error) {
	dbManager, err := database.NewManager(cfg.Database.Dir)
	if err != nil {
		return nil, fmt.Errorf("creating database manager: %w", err)
	}

	metrics := telemetry.NewMetrics()

	cache := guildcache.New(guildcache.Options{
		OpenDB: func(guildID int64) (*sql.DB, error) {
			db, err := dbManager.Tenant(guildID)
			if err != nil {
				return nil, err
			}
			return db.DB, nil
		},
		ViaAdapter: cfg.Flush.ViaAdapter,
		Clock:      clock.Real,
		Metrics:    metrics,
		Outbound:   outbound,
	})

	selfAPI := questapi.New(
		cfg.SelfAPI.BaseURL,
		cfg.SelfAPI.Timeout,
		cfg.SelfAPI.RequestsPerSec,
		cfg.SelfAPI.RequestBurst,
		cfg.Auth.JWTSecretKey,
		cfg.Auth.JWTExpirationHrs,
	)

	sched := scheduler.New(scheduler.Options{
		Cache:             cache,
		Outbound:          outbound,
		Clock:             clock.Real,
		Metrics:           metrics,
		FallbackChannelID: cfg.Announce.QuestBoardChannelID,
	})

	wizards := wizard.NewManager(outbound, clock.Real)

	return &Application{
		cfg:       cfg,
		dbManager: dbManager,
		Cache:     cache,
		Scheduler: sched,
		Wizards:   wizards,
		SelfAPI:   selfAPI,
		Outbound:  outbound,
	}, nil
}

// Adjudicator builds a sign-up decision panel scoped to guildID's own
// tenant database, since adjudication reads and writes that tenant's
// quest repository directly (spec.md §4.2).
func (a *Application) Adjudicator(guildID int64) (*adjudication.Panel, error) {
	entry, err := a.Cache.EnsureGuildEntry(guildID)
	if err != nil {
		return nil, fmt.Errorf("opening tenant database: %w", err)
	}
	repo := quest.NewRepository(entry.DB)
	return adjudication.New(repo, a.SelfAPI, a.Outbound, clock.Real), nil
}

// Settings builds a settings store scoped to guildID's own tenant
// database (spec.md §6.5's settings table lives per-tenant, alongside
// the rest of that guild's data).
func (a *Application) Settings(guildID int64) (*settings.Store, error) {
	entry, err := a.Cache.EnsureGuildEntry(guildID)
	if err != nil {
		return nil, fmt.Errorf("opening tenant database: %w", err)
	}
	return settings.NewStore(entry.DB), nil
}

// Start launches the flush loop and the announcement scheduler as
// background goroutines. It returns immediately; call Shutdown to stop
// them.
func (a *Application) Start(ctx context.Context, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.Cache.RunFlushLoop(ctx, a.cfg.Flush.IntervalSeconds, logger)
	}()
	go func() {
		defer a.wg.Done()
		a.Scheduler.Run(ctx, logger)
	}()
}

// Shutdown cancels the background loops and waits for them to drain,
// or for ctx to expire, then closes every open tenant database.
func (a *Application) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	return a.dbManager.Close()
}
