package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/nonagon/core/internal/config"
	"github.com/nonagon/core/internal/gateway"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	cfg.Database.Dir = t.TempDir()
	cfg.Flush.IntervalSeconds = 10 * time.Millisecond
	return cfg
}

func TestNew_StartAndShutdown(t *testing.T) {
	application, err := New(testConfig(t), gateway.NewFake())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application.Start(ctx, testLogger())
	// let the flush loop tick at least once before shutdown; the scheduler's
	// one-minute interval does not elapse in this window.
	time.Sleep(30 * time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestAdjudicatorAndSettings_ScopedPerTenant(t *testing.T) {
	application, err := New(testConfig(t), gateway.NewFake())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = application.Shutdown(ctx)
	})

	const guildID = int64(99)

	panel, err := application.Adjudicator(guildID)
	if err != nil {
		t.Fatalf("Adjudicator: %v", err)
	}
	if panel == nil {
		t.Fatal("expected a non-nil adjudication panel")
	}

	store, err := application.Settings(guildID)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	got, err := store.Get(context.Background(), guildID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.GuildID != guildID {
		t.Fatalf("expected settings scoped to guild %d, got %d", guildID, got.GuildID)
	}
}
