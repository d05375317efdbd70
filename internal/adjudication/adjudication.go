// Package adjudication implements the referee sign-up decision panel
// from spec.md §4.2: HTTP-first with local fallback, read-back-after-
// write, announcement resync, an audit log line, and a best-effort DM to
// the affected player. It composes questapi (the self-call HTTP client),
// domain/quest, and the gateway outbound port.
package adjudication

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nonagon/core/internal/clock"
	"github.com/nonagon/core/internal/domain/quest"
	"github.com/nonagon/core/internal/gateway"
	"github.com/nonagon/core/internal/postalid"
	"github.com/nonagon/core/internal/questapi"
	"github.com/nonagon/core/internal/resulterr"
)

// Action is one of the three choices a referee makes over a pending
// sign-up in the decision panel (§4.2).
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
	ActionClose   Action = "close"
)

// Panel adjudicates sign-up decisions for a single tenant's quests.
type Panel struct {
	repo     *quest.Repository
	api      *questapi.Client
	outbound gateway.Outbound
	clock    clock.Clock
}

func New(repo *quest.Repository, api *questapi.Client, outbound gateway.Outbound, c clock.Clock) *Panel {
	if c == nil {
		c = clock.Real
	}
	return &Panel{repo: repo, api: api, outbound: outbound, clock: c}
}

// Decide runs one referee decision against guildID's questID, targeting
// targetUserID's pending sign-up. It returns the quest's canonical
// post-decision state.
//
// Step 1 of §4.2's adjudication flow: attempt the operation against the
// self-call HTTP surface first, if configured. A deterministic user
// error (400/404) is propagated verbatim. A network error or 5xx falls
// back to mutating the local entity directly. Because this core does not
// implement the self-call server itself (§1 excludes the HTTP/GraphQL
// surface as an external collaborator), a successful remote write is
// additionally applied to the local copy as this process's read-back,
// per the dual-persistence note in spec.md §9.
func (p *Panel) Decide(ctx context.Context, guildID int64, questID postalid.QuestID, targetUserID postalid.UserID, refereeID postalid.UserID, action Action, logger *slog.Logger) (*quest.Quest, error) {
	q, err := p.repo.Get(ctx, guildID, questID)
	if err != nil {
		return nil, err
	}

	remoteErr := p.tryRemote(ctx, guildID, q, targetUserID, action)
	if remoteErr != nil {
		switch resulterr.KindOf(remoteErr) {
		case resulterr.KindValidation, resulterr.KindNotFound:
			return nil, remoteErr
		}
		// Transient (network/5xx) or remote disabled: fall through to the
		// local mutation path.
	}

	if err := p.applyLocal(q, targetUserID, refereeID, action); err != nil {
		return nil, err
	}
	if err := p.repo.Upsert(ctx, q); err != nil {
		return nil, resulterr.Wrap(resulterr.KindTransient, "could not save your decision, please try again", err)
	}

	// Step 2: re-fetch, preferring the canonical post-write view.
	final, err := p.repo.Get(ctx, guildID, questID)
	if err != nil {
		return nil, err
	}

	// Step 3: synchronise the announcement message.
	if final.Announcement.IsPublished() {
		if err := p.outbound.EditMessage(ctx, final.Announcement.ChannelID, final.Announcement.MessageID, renderQuestEmbed(final)); err != nil {
			logger.Warn("adjudication: failed to resync announcement", "error", err, "guild_id", guildID, "quest_id", questID.String())
		}
	}

	// Step 4: audit log, then a best-effort DM to the affected player.
	logger.Info("adjudication: decision recorded",
		"guild_id", guildID, "quest_id", questID.String(), "target_user_id", targetUserID.String(),
		"referee_id", refereeID.String(), "action", string(action))
	p.notifyPlayer(ctx, targetUserID, action, final, logger)

	return final, nil
}

func (p *Panel) tryRemote(ctx context.Context, guildID int64, q *quest.Quest, targetUserID postalid.UserID, action Action) error {
	if p.api == nil || !p.api.Enabled() {
		return resulterr.New(resulterr.KindTransient, "self-api disabled")
	}
	var err error
	switch action {
	case ActionAccept:
		_, err = p.api.SelectSignup(ctx, guildID, q.QuestID.String(), targetUserID.String())
	case ActionDecline:
		_, err = p.api.RemoveSignup(ctx, guildID, q.QuestID.String(), targetUserID.String())
	case ActionClose:
		_, err = p.api.CloseSignups(ctx, guildID, q.QuestID.String())
	default:
		return resulterr.Validationf("unknown decision action %q", action)
	}
	return err
}

func (p *Panel) applyLocal(q *quest.Quest, targetUserID postalid.UserID, refereeID postalid.UserID, action Action) error {
	switch action {
	case ActionAccept:
		return q.SelectSignup(targetUserID)
	case ActionDecline:
		return q.RemoveSignup(targetUserID)
	case ActionClose:
		q.CloseSignups()
		return nil
	default:
		return resulterr.Validationf("unknown decision action %q", action)
	}
}

func (p *Panel) notifyPlayer(ctx context.Context, targetUserID postalid.UserID, action Action, q *quest.Quest, logger *slog.Logger) {
	if p.outbound == nil {
		return
	}
	msg := gateway.OutboundMessage{Content: decisionMessage(action, q)}
	if err := p.outbound.SendDM(ctx, targetUserID.String(), msg); err != nil {
		// Best-effort per §4.2: DM failures (including opted-out
		// recipients) are swallowed, only logged at debug.
		logger.Debug("adjudication: DM to player failed, swallowing", "error", err, "user_id", targetUserID.String())
	}
}

func decisionMessage(action Action, q *quest.Quest) string {
	switch action {
	case ActionAccept:
		return fmt.Sprintf("You've been selected for %q!", q.Title)
	case ActionDecline:
		return fmt.Sprintf("Your sign-up for %q was declined.", q.Title)
	case ActionClose:
		return fmt.Sprintf("Sign-ups for %q are now closed.", q.Title)
	default:
		return ""
	}
}

// renderQuestEmbed builds the announcement embed resync'd after a
// decision, listing pending and selected sign-ups.
func renderQuestEmbed(q *quest.Quest) gateway.OutboundMessage {
	fields := []gateway.EmbedField{
		{Name: "Starts", Value: q.StartingAt.Format(time.RFC1123), Inline: true},
		{Name: "Duration", Value: q.Duration.String(), Inline: true},
	}
	selected := 0
	for _, s := range q.SignUps {
		if s.Status == quest.SignUpSelected {
			selected++
		}
	}
	fields = append(fields, gateway.EmbedField{
		Name:  "Sign-ups",
		Value: fmt.Sprintf("%d selected / %d total", selected, len(q.SignUps)),
	})
	footer := "Sign-ups are open"
	if !q.IsSignupOpen() {
		footer = "Sign-ups are closed"
	}
	return gateway.OutboundMessage{
		Embed: &gateway.Embed{
			Title:       q.Title,
			Description: q.Description,
			ImageURL:    q.ImageURL,
			Fields:      fields,
			Footer:      footer,
		},
	}
}
