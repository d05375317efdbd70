package guildcache

import (
	"context"
	"database/sql"
	"log/slog"
	"io"
	"testing"

	gdatabase "github.com/nonagon/core/internal/database"
	"github.com/nonagon/core/internal/domain/user"
	"github.com/nonagon/core/internal/postalid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := gdatabase.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

// TestFlush_CoalescesRepeatedMutations_S5 covers spec.md §8 scenario S5:
// three distinct mutations to the same (guild,user) within one flush
// window collapse to a single write of the latest state.
func TestFlush_CoalescesRepeatedMutations_S5(t *testing.T) {
	db := openTestDB(t)
	cache := New(Options{OpenDB: func(guildID int64) (*sql.DB, error) { return db, nil }})

	const guildID = int64(1)
	const externalID = "discord-1"

	for i := 0; i < 3; i++ {
		err := cache.MutateUser(guildID, externalID, postalid.GenerateUserID, func(u *user.User) bool {
			u.MessagesCount++
			return true
		})
		if err != nil {
			t.Fatalf("mutate %d failed: %v", i, err)
		}
	}

	if got := cache.DirtyQueueSize(); got != 3 {
		t.Fatalf("expected 3 enqueued dirty keys before flush, got %d", got)
	}

	cache.FlushOnce(context.Background(), testLogger())

	stats := cache.Stats()
	if stats.TotalItems != 1 {
		t.Fatalf("expected exactly one coalesced write, got %d", stats.TotalItems)
	}

	repo := user.NewRepository(db)
	persisted, err := repo.ListByGuild(context.Background(), guildID)
	if err != nil {
		t.Fatalf("listing persisted users: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("expected exactly one persisted user, got %d", len(persisted))
	}
	if persisted[0].MessagesCount != 3 {
		t.Fatalf("expected persisted state to equal the last in-memory state (3 messages), got %d", persisted[0].MessagesCount)
	}
}

func TestEnsureGuildEntry_Idempotent(t *testing.T) {
	db := openTestDB(t)
	cache := New(Options{OpenDB: func(guildID int64) (*sql.DB, error) { return db, nil }})

	e1, err := cache.EnsureGuildEntry(1)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := cache.EnsureGuildEntry(1)
	if err != nil {
		t.Fatal(err)
	}
	if e1 != e2 {
		t.Fatal("expected EnsureGuildEntry to return the same entry on repeated calls")
	}
}
