// Package wizard implements the DM-driven interactive session framework
// from spec.md §4.4. Per the actor redesign flag in spec.md §9, a session
// is modelled as a small actor holding a mutable draft, driven by a
// single inbound message sum type (UserInput | Button | Modal | Timeout |
// Cancel) through a small state table, resolving a future-like Result
// exactly once.
package wizard

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nonagon/core/internal/clock"
	"github.com/nonagon/core/internal/gateway"
	"github.com/nonagon/core/internal/resulterr"
)

// MsgKind tags which variant of Msg is populated, keeping the inbound
// message a sealed sum type rather than an interface{} inspected with a
// type switch (spec.md §9).
type MsgKind int

const (
	MsgUserInput MsgKind = iota
	MsgButton
	MsgModal
	MsgTimeout
	MsgCancel
)

// Msg is one inbound event a session reacts to.
type Msg struct {
	Kind     MsgKind
	Text     string            // MsgUserInput
	CustomID string            // MsgButton, MsgModal
	Values   map[string]string // MsgModal
}

// cancelKeyword is the free-text token that resolves a session with
// failure. It is the only keyword recognised: the quest and character
// OnUserInput handlers give "skip" and "clear" no special meaning, so they
// are taken as ordinary input for the current field.
const cancelKeyword = "cancel"

// Instruction is what a handler tells the session to do after processing
// one message.
type Instruction int

const (
	InstructionContinue Instruction = iota
	InstructionSubmit
	InstructionCancel
)

// FailureReason distinguishes why a session resolved without success.
type FailureReason string

const (
	ReasonCancelled FailureReason = "cancelled"
	ReasonTimeout   FailureReason = "timed out"
)

// Result is the outcome a session's future resolves to.
type Result[T any] struct {
	Success bool
	Draft   T
	Reason  FailureReason
	Message string
}

// Config parameterises a Session over its draft type T. Handlers return
// the (possibly mutated) draft and an Instruction; they must not block.
type Config[T any] struct {
	Draft T

	// Render produces the current preview message for the draft.
	Render func(T) gateway.OutboundMessage

	// MissingRequiredFields returns the names of required fields not yet
	// populated; Submit refuses to resolve while this is non-empty
	// (spec.md §4.4's "required fields policy").
	MissingRequiredFields func(T) []string

	OnUserInput func(ctx context.Context, d T, text string) (T, Instruction)
	OnButton    func(ctx context.Context, d T, customID string) (T, Instruction)
	OnModal     func(ctx context.Context, d T, customID string, values map[string]string) (T, Instruction)

	// CancelMessage is the failure text used when the author cancels.
	CancelMessage string

	// AskTimeout bounds how long the session waits for the next message
	// before timing out, per spec.md §5 (300s quests, 180s characters).
	AskTimeout time.Duration
}

// Manager gates "single session per author" process-wide, per spec.md
// §4.4: a process-wide set of active session IDs, not a module-level
// singleton — callers own the one instance they pass around.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]chan Msg // external author ID -> inbound channel

	outbound gateway.Outbound
	clock    clock.Clock
}

func NewManager(outbound gateway.Outbound, c clock.Clock) *Manager {
	if c == nil {
		c = clock.Real
	}
	return &Manager{sessions: map[string]chan Msg{}, outbound: outbound, clock: c}
}

// IsActive reports whether authorID already has an open session.
func (m *Manager) IsActive(authorID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[authorID]
	return ok
}

func (m *Manager) acquire(authorID string) (chan Msg, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[authorID]; ok {
		return nil, false
	}
	ch := make(chan Msg, 8)
	m.sessions[authorID] = ch
	return ch, true
}

func (m *Manager) release(authorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, authorID)
}

// Dispatch routes an inbound Msg to authorID's active session, if any.
// It returns false if the author has no open session, letting the
// caller fall back to treating the input as an ordinary command/message.
func (m *Manager) Dispatch(authorID string, msg Msg) bool {
	m.mu.Lock()
	ch, ok := m.sessions[authorID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
		return true
	default:
		return false // inbox full; author is spamming faster than the session drains
	}
}

// ErrAlreadyActive is returned by Start when authorID already has an
// open session, per spec.md §4.4's single-session-per-author gate.
var ErrAlreadyActive = resulterr.Conflictf("you already have an open session; finish or cancel it first")

// Session is one author's live wizard over a draft of type T.
type Session[T any] struct {
	authorID    string
	dmChannelID string
	previewID   string
	cfg         Config[T]

	manager  *Manager
	inbox    chan Msg
	result   chan Result[T]
	logger   *slog.Logger
}

// Start opens a DM with authorID, sends the initial preview, and spawns
// the session's run loop. The precondition check (permissions, role,
// cooldown — step 1 of §4.4) is the caller's responsibility before
// calling Start.
func Start[T any](ctx context.Context, m *Manager, authorID string, cfg Config[T], logger *slog.Logger) (*Session[T], error) {
	inbox, ok := m.acquire(authorID)
	if !ok {
		return nil, ErrAlreadyActive
	}

	dmChannelID, err := m.outbound.OpenDMChannel(ctx, authorID)
	if err != nil {
		m.release(authorID)
		return nil, resulterr.Wrap(resulterr.KindTransient, "could not open a DM with you", err)
	}

	s := &Session[T]{
		authorID:    authorID,
		dmChannelID: dmChannelID,
		cfg:         cfg,
		manager:     m,
		inbox:       inbox,
		result:      make(chan Result[T], 1),
		logger:      logger,
	}

	messageID, err := m.outbound.SendMessage(ctx, dmChannelID, cfg.Render(cfg.Draft))
	if err != nil {
		m.release(authorID)
		return nil, resulterr.Wrap(resulterr.KindTransient, "could not send the initial preview", err)
	}
	s.previewID = messageID

	go s.run(ctx)
	return s, nil
}

// Send delivers an inbound message into the session, per Manager.Dispatch.
func (s *Session[T]) Send(msg Msg) { s.manager.Dispatch(s.authorID, msg) }

// Result blocks until the session resolves.
func (s *Session[T]) Result() <-chan Result[T] { return s.result }

// run is the session's actor loop: strict sequential ordering of author
// inputs (spec.md §5), a single session-level timeout that resets after
// every processed message.
func (s *Session[T]) run(ctx context.Context) {
	timeout := s.cfg.AskTimeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	defer s.finish(ctx)

	for {
		select {
		case <-ctx.Done():
			s.resolve(Result[T]{Success: false, Draft: s.cfg.Draft, Reason: ReasonCancelled, Message: "The session was interrupted."})
			return
		case <-timer.C:
			s.resolve(Result[T]{Success: false, Draft: s.cfg.Draft, Reason: ReasonTimeout, Message: "You took too long to respond, so the session timed out."})
			return
		case msg := <-s.inbox:
			done := s.handle(ctx, msg)
			if done {
				return
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(timeout)
		}
	}
}

// handle processes one Msg, re-renders the preview on any accepted
// mutation, and reports whether the session is now resolved.
func (s *Session[T]) handle(ctx context.Context, msg Msg) bool {
	switch msg.Kind {
	case MsgCancel:
		s.resolve(Result[T]{Success: false, Draft: s.cfg.Draft, Reason: ReasonCancelled, Message: s.cancelMessage()})
		return true

	case MsgTimeout:
		s.resolve(Result[T]{Success: false, Draft: s.cfg.Draft, Reason: ReasonTimeout, Message: "You took too long to respond, so the session timed out."})
		return true

	case MsgUserInput:
		if strings.EqualFold(strings.TrimSpace(msg.Text), cancelKeyword) {
			s.resolve(Result[T]{Success: false, Draft: s.cfg.Draft, Reason: ReasonCancelled, Message: s.cancelMessage()})
			return true
		}
		if s.cfg.OnUserInput == nil {
			return false
		}
		draft, instr := s.cfg.OnUserInput(ctx, s.cfg.Draft, msg.Text)
		return s.applyInstruction(ctx, draft, instr)

	case MsgButton:
		if strings.EqualFold(msg.CustomID, "cancel") {
			s.resolve(Result[T]{Success: false, Draft: s.cfg.Draft, Reason: ReasonCancelled, Message: s.cancelMessage()})
			return true
		}
		if strings.EqualFold(msg.CustomID, "submit") {
			return s.trySubmit()
		}
		if s.cfg.OnButton == nil {
			return false
		}
		draft, instr := s.cfg.OnButton(ctx, s.cfg.Draft, msg.CustomID)
		return s.applyInstruction(ctx, draft, instr)

	case MsgModal:
		if s.cfg.OnModal == nil {
			return false
		}
		draft, instr := s.cfg.OnModal(ctx, s.cfg.Draft, msg.CustomID, msg.Values)
		return s.applyInstruction(ctx, draft, instr)
	}
	return false
}

func (s *Session[T]) applyInstruction(ctx context.Context, draft T, instr Instruction) bool {
	s.cfg.Draft = draft
	switch instr {
	case InstructionSubmit:
		return s.trySubmit()
	case InstructionCancel:
		s.resolve(Result[T]{Success: false, Draft: s.cfg.Draft, Reason: ReasonCancelled, Message: s.cancelMessage()})
		return true
	default:
		s.rerenderPreview(ctx)
		return false
	}
}

// trySubmit implements §4.4's required-fields policy: collects missing
// fields and, if any remain, logs them at debug level and returns without
// resolving. No message is sent to the author in that case.
func (s *Session[T]) trySubmit() bool {
	if s.cfg.MissingRequiredFields != nil {
		if missing := s.cfg.MissingRequiredFields(s.cfg.Draft); len(missing) > 0 {
			s.logger.Debug("wizard: submit blocked on missing required fields",
				"author_id", s.authorID, "missing", missing)
			return false
		}
	}
	s.resolve(Result[T]{Success: true, Draft: s.cfg.Draft})
	return true
}

func (s *Session[T]) cancelMessage() string {
	if s.cfg.CancelMessage != "" {
		return s.cfg.CancelMessage
	}
	return "Cancelled."
}

// rerenderPreview edits the single tracked preview message in place, per
// §4.4's preview invariant. If the edit fails (message gone), a new
// preview is sent and used thenceforth.
func (s *Session[T]) rerenderPreview(ctx context.Context) {
	rendered := s.cfg.Render(s.cfg.Draft)
	if err := s.manager.outbound.EditMessage(ctx, s.dmChannelID, s.previewID, rendered); err != nil {
		if newID, sendErr := s.manager.outbound.SendMessage(ctx, s.dmChannelID, rendered); sendErr == nil {
			s.previewID = newID
		} else {
			s.logger.Warn("wizard: failed to resend preview after edit failure", "error", sendErr, "author_id", s.authorID)
		}
	}
}

// finish detaches the view from the preview message and releases the
// session slot, per §4.4 step 7.
func (s *Session[T]) finish(ctx context.Context) {
	_ = s.manager.outbound.EditMessage(ctx, s.dmChannelID, s.previewID, gateway.OutboundMessage{Content: "This session has ended."})
	s.manager.release(s.authorID)
}

func (s *Session[T]) resolve(r Result[T]) {
	select {
	case s.result <- r:
	default:
	}
}
