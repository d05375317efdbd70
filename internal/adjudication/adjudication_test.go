package adjudication

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	gdatabase "github.com/nonagon/core/internal/database"
	"github.com/nonagon/core/internal/domain/quest"
	"github.com/nonagon/core/internal/gateway"
	"github.com/nonagon/core/internal/postalid"
	"github.com/nonagon/core/internal/resulterr"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

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

func seedAnnouncedQuest(t *testing.T, db *sql.DB, guildID int64) (*quest.Repository, postalid.QuestID, postalid.UserID, postalid.CharacterID) {
	t.Helper()
	repo := quest.NewRepository(db)
	referee, _ := postalid.NewUserID("A1B2C3")
	player, _ := postalid.NewUserID("P1P1P1")
	char, _ := postalid.NewCharacterID("L0M9N8")
	questID, _ := postalid.NewQuestID("X1Y2Z3")

	q := quest.New(questID, guildID, referee, "Expedition", time.Now().Add(time.Hour), time.Hour)
	if err := q.PublishNow(referee, false, "chan-1", "msg-1", "", time.Now()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := q.AddSignup(player, true, true, char); err != nil {
		t.Fatalf("add signup: %v", err)
	}
	if err := repo.Upsert(context.Background(), q); err != nil {
		t.Fatalf("seeding quest: %v", err)
	}
	return repo, questID, player, char
}

// TestDecide_AcceptLocalFallback exercises the local-fallback path (no
// self-API configured) for an Accept decision, and checks the
// announcement message is resynced and the player DM'd.
func TestDecide_AcceptLocalFallback(t *testing.T) {
	db := openTestDB(t)
	const guildID = int64(1)
	repo, questID, player, _ := seedAnnouncedQuest(t, db, guildID)

	fake := gateway.NewFake()
	panel := New(repo, nil, fake, nil)

	referee, _ := postalid.NewUserID("A1B2C3")
	got, err := panel.Decide(context.Background(), guildID, questID, player, referee, ActionAccept, testLogger())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if len(got.SignUps) != 1 || got.SignUps[0].Status != quest.SignUpSelected {
		t.Fatalf("expected selected signup, got %+v", got.SignUps)
	}
	if len(fake.DMsSent) != 1 {
		t.Fatalf("expected one DM sent, got %d", len(fake.DMsSent))
	}
	if _, ok := fake.Messages["msg-1"]; !ok {
		t.Fatalf("expected the announcement message to be resynced")
	}
}

// TestDecide_DeclineRemovesSignup exercises the Decline action.
func TestDecide_DeclineRemovesSignup(t *testing.T) {
	db := openTestDB(t)
	const guildID = int64(2)
	repo, questID, player, _ := seedAnnouncedQuest(t, db, guildID)

	fake := gateway.NewFake()
	panel := New(repo, nil, fake, nil)
	referee, _ := postalid.NewUserID("A1B2C3")

	got, err := panel.Decide(context.Background(), guildID, questID, player, referee, ActionDecline, testLogger())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if len(got.SignUps) != 0 {
		t.Fatalf("expected signup removed, got %+v", got.SignUps)
	}
}

// TestDecide_DMOptOutIsSwallowed ensures a Forbidden DM never surfaces as
// a decision error, per §4.2's "best-effort; DM failures are swallowed".
func TestDecide_DMOptOutIsSwallowed(t *testing.T) {
	db := openTestDB(t)
	const guildID = int64(3)
	repo, questID, player, _ := seedAnnouncedQuest(t, db, guildID)

	fake := gateway.NewFake()
	fake.OptedOut[player.String()] = true
	panel := New(repo, nil, fake, nil)
	referee, _ := postalid.NewUserID("A1B2C3")

	if _, err := panel.Decide(context.Background(), guildID, questID, player, referee, ActionClose, testLogger()); err != nil {
		t.Fatalf("decide should not fail on DM opt-out: %v", err)
	}
}

// TestDecide_NotFoundPropagatesVerbatim ensures acting on a sign-up that
// does not exist returns the domain's not-found error rather than a
// generic failure.
func TestDecide_NotFoundPropagatesVerbatim(t *testing.T) {
	db := openTestDB(t)
	const guildID = int64(4)
	repo, questID, _, _ := seedAnnouncedQuest(t, db, guildID)

	other, _ := postalid.NewUserID("Z9Z9Z9")
	fake := gateway.NewFake()
	panel := New(repo, nil, fake, nil)
	referee, _ := postalid.NewUserID("A1B2C3")

	_, err := panel.Decide(context.Background(), guildID, questID, other, referee, ActionAccept, testLogger())
	if err == nil {
		t.Fatalf("expected an error for a non-existent signup")
	}
	if resulterr.KindOf(err) != resulterr.KindNotFound {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}
