// Package testutil provides shared test fixtures: an in-memory
// per-tenant SQLite database with migrations applied, and constructors
// for seeding domain entities directly through their repositories.
// Grounded on the teacher's internal/testutil, adapted from raw SQL
// inserts to this module's repository.Upsert pattern since every domain
// package here exposes one.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/nonagon/core/internal/database"
	"github.com/nonagon/core/internal/domain/character"
	"github.com/nonagon/core/internal/domain/quest"
	"github.com/nonagon/core/internal/domain/summary"
	"github.com/nonagon/core/internal/domain/user"
	"github.com/nonagon/core/internal/postalid"
)

// TestDB opens an in-memory SQLite database with migrations applied.
// The database is closed automatically when the test completes.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db.DB
}

// NewTestUser seeds a default MEMBER-role user for guildID under body
// (a 6-char postal ID body, e.g. "A1B2C3") and returns it.
func NewTestUser(t *testing.T, db *sql.DB, guildID int64, body, discordID string) *user.User {
	t.Helper()
	id, err := postalid.NewUserID(body)
	if err != nil {
		t.Fatalf("NewUserID(%q): %v", body, err)
	}
	u := user.New(id, guildID, discordID, time.Now().UTC())
	if err := user.NewRepository(db).Upsert(context.Background(), u); err != nil {
		t.Fatalf("seeding test user: %v", err)
	}
	return u
}

// NewTestCharacter seeds an ACTIVE character owned by owner.
func NewTestCharacter(t *testing.T, db *sql.DB, guildID int64, body string, owner postalid.UserID, name string) *character.Character {
	t.Helper()
	id, err := postalid.NewCharacterID(body)
	if err != nil {
		t.Fatalf("NewCharacterID(%q): %v", body, err)
	}
	c := character.New(id, owner, guildID, name, time.Now().UTC())
	if err := character.NewRepository(db).Upsert(context.Background(), c); err != nil {
		t.Fatalf("seeding test character: %v", err)
	}
	return c
}

// NewTestQuest seeds a DRAFT quest hosted by referee, starting one hour
// from now for a one-hour duration.
func NewTestQuest(t *testing.T, db *sql.DB, guildID int64, body string, referee postalid.UserID, title string) *quest.Quest {
	t.Helper()
	id, err := postalid.NewQuestID(body)
	if err != nil {
		t.Fatalf("NewQuestID(%q): %v", body, err)
	}
	now := time.Now().UTC()
	q := quest.New(id, guildID, referee, title, now.Add(time.Hour), time.Hour)
	if err := quest.NewRepository(db).Upsert(context.Background(), q); err != nil {
		t.Fatalf("seeding test quest: %v", err)
	}
	return q
}

// NewTestSummary seeds a DRAFT summary authored by author.
func NewTestSummary(t *testing.T, db *sql.DB, guildID int64, body string, kind summary.Kind, author postalid.UserID) *summary.Summary {
	t.Helper()
	id, err := postalid.NewSummaryID(body)
	if err != nil {
		t.Fatalf("NewSummaryID(%q): %v", body, err)
	}
	s := summary.New(id, guildID, kind, author, time.Now().UTC())
	if err := summary.NewRepository(db).Upsert(context.Background(), s); err != nil {
		t.Fatalf("seeding test summary: %v", err)
	}
	return s
}
