package wizard

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nonagon/core/internal/gateway"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// TestWizard_CancelKeyword_S6 covers spec.md §8 scenario S6: an author
// opens a quest-create wizard and sends "cancel"; the session resolves
// failure with the quest-specific cancel reason, and the author's slot
// is released so a second session can open immediately after.
func TestWizard_CancelKeyword_S6(t *testing.T) {
	fake := gateway.NewFake()
	mgr := NewManager(fake, nil)

	const author = "author-1"
	sess, err := Start(context.Background(), mgr, author, NewQuestConfig(time.Second), testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !mgr.IsActive(author) {
		t.Fatalf("expected session to be active immediately after Start")
	}

	sess.Send(Msg{Kind: MsgUserInput, Text: "cancel"})

	select {
	case res := <-sess.Result():
		if res.Success {
			t.Fatalf("expected a failed result")
		}
		if res.Message != "Quest creation cancelled." {
			t.Fatalf("unexpected cancel message: %q", res.Message)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session result")
	}

	// The session's own teardown is async relative to resolve(); poll
	// briefly for the slot to clear.
	deadline := time.Now().Add(time.Second)
	for mgr.IsActive(author) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if mgr.IsActive(author) {
		t.Fatalf("expected the active-session slot to be released after cancel")
	}

	if _, err := Start(context.Background(), mgr, author, NewQuestConfig(time.Second), testLogger()); err != nil {
		t.Fatalf("expected a second session to succeed after cancel, got: %v", err)
	}
}

// TestWizard_SingleSessionGate ensures a second concurrent session for
// the same author is rejected while the first is open.
func TestWizard_SingleSessionGate(t *testing.T) {
	fake := gateway.NewFake()
	mgr := NewManager(fake, nil)
	const author = "author-2"

	if _, err := Start(context.Background(), mgr, author, NewQuestConfig(time.Minute), testLogger()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := Start(context.Background(), mgr, author, NewQuestConfig(time.Minute), testLogger()); err == nil {
		t.Fatalf("expected the second concurrent session to be rejected")
	}
}

// TestWizard_SubmitBlockedOnMissingFields ensures Submit does not
// resolve while required fields remain missing, per §4.4's required
// fields policy.
func TestWizard_SubmitBlockedOnMissingFields(t *testing.T) {
	fake := gateway.NewFake()
	mgr := NewManager(fake, nil)
	const author = "author-3"

	sess, err := Start(context.Background(), mgr, author, NewQuestConfig(time.Minute), testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	sess.Send(Msg{Kind: MsgButton, CustomID: "submit"})

	select {
	case <-sess.Result():
		t.Fatalf("expected submit to be blocked on missing required fields")
	case <-time.After(100 * time.Millisecond):
		// expected: no resolution yet
	}

	sess.Send(Msg{Kind: MsgUserInput, Text: "Expedition"})
	sess.Send(Msg{Kind: MsgUserInput, Text: "1893456000"})
	sess.Send(Msg{Kind: MsgUserInput, Text: "3"})
	sess.Send(Msg{Kind: MsgButton, CustomID: "submit"})

	select {
	case res := <-sess.Result():
		if !res.Success {
			t.Fatalf("expected success after filling required fields, got failure: %s", res.Message)
		}
		if res.Draft.Title != "Expedition" {
			t.Fatalf("unexpected draft title: %q", res.Draft.Title)
		}
		if res.Draft.Duration == nil || *res.Draft.Duration != 3*time.Hour {
			t.Fatalf("unexpected draft duration: %v", res.Draft.Duration)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for successful submit")
	}
}

// TestWizard_Timeout ensures a session resolves with a timeout failure
// after AskTimeout elapses with no input.
func TestWizard_Timeout(t *testing.T) {
	fake := gateway.NewFake()
	mgr := NewManager(fake, nil)
	const author = "author-4"

	sess, err := Start(context.Background(), mgr, author, NewCharacterConfig(20*time.Millisecond), testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case res := <-sess.Result():
		if res.Success || res.Reason != ReasonTimeout {
			t.Fatalf("expected a timeout failure, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the session to time out")
	}
}

func TestParseEpochSeconds(t *testing.T) {
	if got, err := ParseEpochSeconds("0"); err != nil || !got.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("expected epoch zero, got %v, %v", got, err)
	}
	if _, err := ParseEpochSeconds("-1"); err == nil {
		t.Fatalf("expected -1 to be rejected (not a digit string)")
	}
	if _, err := ParseEpochSeconds(""); err == nil {
		t.Fatalf("expected empty input to be rejected")
	}
}

func TestParseHTTPURL(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"no-scheme.com/sheet", true},
		{"ftp://example.com/sheet", true},
		{"http://example.com/sheet", false},
		{"https://example.com/sheet", false},
	}
	for _, c := range cases {
		_, err := ParseHTTPURL(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseHTTPURL(%q): err=%v, wantErr=%v", c.in, err, c.wantErr)
		}
	}
}

func TestParseBoundedLength_CharacterNameBoundaries(t *testing.T) {
	if _, err := ParseBoundedLength("ab", 2, 64); err != nil {
		t.Errorf("length 2 should pass: %v", err)
	}
	if _, err := ParseBoundedLength("a", 2, 64); err == nil {
		t.Errorf("length 1 should fail")
	}
	if _, err := ParseBoundedLength(string(make([]byte, 64)), 2, 64); err != nil {
		t.Errorf("length 64 should pass: %v", err)
	}
	if _, err := ParseBoundedLength(string(make([]byte, 65)), 2, 64); err == nil {
		t.Errorf("length 65 should fail")
	}
}
