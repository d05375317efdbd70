package wizard

import (
	"context"
	"strings"
	"time"

	"github.com/nonagon/core/internal/gateway"
)

const maxQuestTags = 20

// QuestDraft is the live preview state of a quest being created or
// edited through a wizard session, per spec.md §4.4.
type QuestDraft struct {
	Title       string
	Description string
	Tags        []string
	ImageURL    string
	RawMarkdown string
	StartingAt  *time.Time
	Duration    *time.Duration
}

// QuestMissingRequiredFields implements the quest wizard's required
// fields policy from spec.md §4.4: title, starting-at, duration.
func QuestMissingRequiredFields(d QuestDraft) []string {
	var missing []string
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if d.StartingAt == nil {
		missing = append(missing, "starting-at")
	}
	if d.Duration == nil {
		missing = append(missing, "duration")
	}
	return missing
}

func renderQuestDraft(d QuestDraft) gateway.OutboundMessage {
	title := d.Title
	if title == "" {
		title = "(untitled quest)"
	}
	var fields []gateway.EmbedField
	if d.StartingAt != nil {
		fields = append(fields, gateway.EmbedField{Name: "Starts", Value: d.StartingAt.Format(time.RFC1123), Inline: true})
	} else {
		fields = append(fields, gateway.EmbedField{Name: "Starts", Value: "(not set — reply with epoch seconds)", Inline: true})
	}
	if d.Duration != nil {
		fields = append(fields, gateway.EmbedField{Name: "Duration", Value: d.Duration.String(), Inline: true})
	} else {
		fields = append(fields, gateway.EmbedField{Name: "Duration", Value: "(not set — reply with hours)", Inline: true})
	}
	if len(d.Tags) > 0 {
		fields = append(fields, gateway.EmbedField{Name: "Tags", Value: strings.Join(d.Tags, ", ")})
	}
	missing := QuestMissingRequiredFields(d)
	footer := "Submit when ready."
	if len(missing) > 0 {
		footer = "Missing: " + strings.Join(missing, ", ")
	}
	return gateway.OutboundMessage{
		Embed: &gateway.Embed{
			Title:       title,
			Description: d.Description,
			ImageURL:    d.ImageURL,
			Fields:      fields,
			Footer:      footer,
		},
		Components: []gateway.Component{
			{Kind: gateway.ComponentButton, CustomID: "edit_details", Label: "Edit Details"},
			{Kind: gateway.ComponentButton, CustomID: "submit", Label: "Submit"},
			{Kind: gateway.ComponentButton, CustomID: "cancel", Label: "Cancel"},
		},
	}
}

// questOnUserInput advances through the free-text ask sequence: title,
// then starting-at (epoch seconds), then duration (positive hours), in
// that order, mirroring the `_ask` turns of spec.md §4.4 step 5.
func questOnUserInput(_ context.Context, d QuestDraft, text string) (QuestDraft, Instruction) {
	text = strings.TrimSpace(text)
	switch {
	case strings.TrimSpace(d.Title) == "":
		if text == "" {
			return d, InstructionContinue
		}
		d.Title = text
	case d.StartingAt == nil:
		t, err := ParseEpochSeconds(text)
		if err != nil {
			return d, InstructionContinue
		}
		d.StartingAt = &t
	case d.Duration == nil:
		dur, err := ParsePositiveHours(text)
		if err != nil {
			return d, InstructionContinue
		}
		d.Duration = &dur
	default:
		// All required fields filled; free text beyond this point edits
		// the description.
		d.Description = text
	}
	return d, InstructionContinue
}

// questOnModal handles the "edit_details" modal's optional fields:
// description, tags, and image URL.
func questOnModal(_ context.Context, d QuestDraft, customID string, values map[string]string) (QuestDraft, Instruction) {
	if customID != "edit_details" {
		return d, InstructionContinue
	}
	if v, ok := values["description"]; ok {
		if parsed, err := ParseBoundedLength(v, 0, 2000); err == nil {
			d.Description = parsed
		}
	}
	if v, ok := values["tags"]; ok {
		if parsed, err := ParseCommaSeparatedList(v, maxQuestTags); err == nil {
			d.Tags = parsed
		}
	}
	if v, ok := values["image_url"]; ok && v != "" {
		if parsed, err := ParseHTTPURL(v); err == nil {
			d.ImageURL = parsed
		}
	}
	return d, InstructionContinue
}

// NewQuestConfig builds the wizard Config for a quest-creation session.
func NewQuestConfig(timeout time.Duration) Config[QuestDraft] {
	return Config[QuestDraft]{
		Draft:                 QuestDraft{},
		Render:                renderQuestDraft,
		MissingRequiredFields: func(d QuestDraft) []string { return QuestMissingRequiredFields(d) },
		OnUserInput:           questOnUserInput,
		OnModal:               questOnModal,
		CancelMessage:         "Quest creation cancelled.",
		AskTimeout:            timeout,
	}
}
