package quest

import (
	"strings"
	"testing"
	"time"

	"github.com/nonagon/core/internal/postalid"
)

func mustUserID(t *testing.T, body string) postalid.UserID {
	t.Helper()
	id, err := postalid.NewUserID(body)
	if err != nil {
		t.Fatalf("NewUserID(%q): %v", body, err)
	}
	return id
}

func mustCharacterID(t *testing.T, body string) postalid.CharacterID {
	t.Helper()
	id, err := postalid.NewCharacterID(body)
	if err != nil {
		t.Fatalf("NewCharacterID(%q): %v", body, err)
	}
	return id
}

func mustQuestID(t *testing.T, body string) postalid.QuestID {
	t.Helper()
	id, err := postalid.NewQuestID(body)
	if err != nil {
		t.Fatalf("NewQuestID(%q): %v", body, err)
	}
	return id
}

// TestLifecycle_S1 walks the full draft→completed happy path from
// spec.md §8 scenario S1.
func TestLifecycle_S1(t *testing.T) {
	referee := mustUserID(t, "A1B2C3")
	player := mustUserID(t, "P1P1P1")
	char := mustCharacterID(t, "L0M9N8")

	startingAt := time.Unix(1893456000, 0).UTC()
	q := New(mustQuestID(t, "X1Y2Z3"), 1, referee, "Expedition", startingAt, 3*time.Hour)

	now := time.Now().UTC()
	if err := q.PublishNow(referee, false, "chan-1", "msg-1", "", now); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if q.Status != StatusAnnounced {
		t.Fatalf("expected ANNOUNCED, got %s", q.Status)
	}

	if err := q.AddSignup(player, true, true, char); err != nil {
		t.Fatalf("add signup failed: %v", err)
	}
	if len(q.SignUps) != 1 || q.SignUps[0].Status != SignUpApplied {
		t.Fatalf("expected one applied signup, got %+v", q.SignUps)
	}

	if err := q.SelectSignup(player); err != nil {
		t.Fatalf("select signup failed: %v", err)
	}
	if q.SignUps[0].Status != SignUpSelected {
		t.Fatalf("expected SELECTED, got %s", q.SignUps[0].Status)
	}

	q.CloseSignups()
	if q.IsSignupOpen() {
		t.Fatal("expected signups closed")
	}

	if err := q.Complete(referee, now); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if q.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", q.Status)
	}
	if q.EndedAt == nil {
		t.Fatal("expected ended_at to be set")
	}
}

// TestDuplicateSignup_S2 verifies the canonical duplicate-signup message.
func TestDuplicateSignup_S2(t *testing.T) {
	referee := mustUserID(t, "A1B2C3")
	player := mustUserID(t, "P1P1P1")
	c1 := mustCharacterID(t, "C1C1C1")
	c2 := mustCharacterID(t, "C2C2C2")

	q := New(mustQuestID(t, "Q1Q1Q1"), 1, referee, "Expedition", time.Now().Add(time.Hour), time.Hour)
	now := time.Now().UTC()
	if err := q.PublishNow(referee, false, "chan", "msg", "", now); err != nil {
		t.Fatal(err)
	}
	if err := q.AddSignup(player, true, true, c1); err != nil {
		t.Fatal(err)
	}

	err := q.AddSignup(player, true, true, c2)
	if err == nil {
		t.Fatal("expected duplicate signup to be rejected")
	}
	if !strings.Contains(err.Error(), "already requested to join") {
		t.Fatalf("expected canonical message, got: %v", err)
	}
	if len(q.SignUps) != 1 {
		t.Fatalf("signups must be unchanged, got %+v", q.SignUps)
	}
}

// TestNudgeCooldown_S3 verifies the 48h cooldown boundary behaviour.
func TestNudgeCooldown_S3(t *testing.T) {
	referee := mustUserID(t, "A1B2C3")
	q := New(mustQuestID(t, "Q1Q1Q1"), 1, referee, "Expedition", time.Now().Add(time.Hour), time.Hour)

	t0 := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := q.PublishNow(referee, false, "chan", "msg", "", t0); err != nil {
		t.Fatal(err)
	}

	if err := q.Nudge(referee, t0); err != nil {
		t.Fatalf("first nudge should succeed: %v", err)
	}

	t47 := t0.Add(47 * time.Hour)
	err := q.Nudge(referee, t47)
	if err == nil {
		t.Fatal("nudge at t0+47h should be rejected")
	}
	if !strings.Contains(err.Error(), "1h") {
		t.Fatalf("expected message to mention 1h remaining, got: %v", err)
	}

	tAfter := t0.Add(48*time.Hour + time.Second)
	if err := q.Nudge(referee, tAfter); err != nil {
		t.Fatalf("nudge at t0+48h+1s should succeed: %v", err)
	}
}

// TestTerminalStatesRejectTransitions covers invariant 3: COMPLETED and
// CANCELLED reject further transitions.
func TestTerminalStatesRejectTransitions(t *testing.T) {
	referee := mustUserID(t, "A1B2C3")
	player := mustUserID(t, "P1P1P1")
	char := mustCharacterID(t, "C1C1C1")

	for _, terminal := range []Status{StatusCompleted, StatusCancelled} {
		q := New(mustQuestID(t, "Q1Q1Q1"), 1, referee, "Expedition", time.Now().Add(time.Hour), time.Hour)
		q.Status = terminal

		now := time.Now().UTC()
		if err := q.Start(referee, now); err == nil {
			t.Fatalf("%s: start should fail", terminal)
		}
		if err := q.PublishNow(referee, false, "chan", "msg", "", now); err == nil {
			t.Fatalf("%s: publish should fail", terminal)
		}
		if err := q.AddSignup(player, true, true, char); err == nil {
			t.Fatalf("%s: add-signup should fail", terminal)
		}
	}
}

func TestCancel_IdempotentOnAlreadyCancelled(t *testing.T) {
	referee := mustUserID(t, "A1B2C3")
	q := New(mustQuestID(t, "Q1Q1Q1"), 1, referee, "Expedition", time.Now().Add(time.Hour), time.Hour)
	now := time.Now().UTC()
	if err := q.Cancel(referee, false, now); err != nil {
		t.Fatal(err)
	}
	if err := q.Cancel(referee, false, now); err != nil {
		t.Fatalf("cancelling an already-cancelled quest should be a no-op, got: %v", err)
	}
}

func TestCloseSignups_Idempotent(t *testing.T) {
	referee := mustUserID(t, "A1B2C3")
	q := New(mustQuestID(t, "Q1Q1Q1"), 1, referee, "Expedition", time.Now().Add(time.Hour), time.Hour)
	q.CloseSignups()
	q.CloseSignups()
	if q.IsSignupOpen() {
		t.Fatal("expected signups to remain closed")
	}
}
