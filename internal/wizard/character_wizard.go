package wizard

import (
	"context"
	"strings"
	"time"

	"github.com/nonagon/core/internal/gateway"
)

const maxCharacterTags = 20

// CharacterDraft is the live preview state of a character being created
// or edited through a wizard session, per spec.md §4.4.
type CharacterDraft struct {
	Name        string
	SheetURL    string
	ThreadURL   string
	TokenURL    string
	ArtURL      string
	Tags        []string
	Description string
	Notes       string
}

// CharacterMissingRequiredFields implements the character wizard's
// required fields policy from spec.md §4.4: name, sheet link, art link.
func CharacterMissingRequiredFields(d CharacterDraft) []string {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if d.SheetURL == "" {
		missing = append(missing, "sheet link")
	}
	if d.ArtURL == "" {
		missing = append(missing, "art link")
	}
	return missing
}

func renderCharacterDraft(d CharacterDraft) gateway.OutboundMessage {
	name := d.Name
	if name == "" {
		name = "(unnamed character)"
	}
	var fields []gateway.EmbedField
	if d.SheetURL != "" {
		fields = append(fields, gateway.EmbedField{Name: "Sheet", Value: d.SheetURL})
	} else {
		fields = append(fields, gateway.EmbedField{Name: "Sheet", Value: "(not set — reply with a URL)"})
	}
	if d.ArtURL != "" {
		fields = append(fields, gateway.EmbedField{Name: "Art", Value: d.ArtURL})
	} else {
		fields = append(fields, gateway.EmbedField{Name: "Art", Value: "(not set — reply with a URL)"})
	}
	if len(d.Tags) > 0 {
		fields = append(fields, gateway.EmbedField{Name: "Tags", Value: strings.Join(d.Tags, ", ")})
	}
	missing := CharacterMissingRequiredFields(d)
	footer := "Submit when ready."
	if len(missing) > 0 {
		footer = "Missing: " + strings.Join(missing, ", ")
	}
	return gateway.OutboundMessage{
		Embed: &gateway.Embed{
			Title:       name,
			Description: d.Description,
			ImageURL:    d.ArtURL,
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

// characterOnUserInput advances through the ask sequence: name, sheet
// URL, art URL, in that order.
func characterOnUserInput(_ context.Context, d CharacterDraft, text string) (CharacterDraft, Instruction) {
	text = strings.TrimSpace(text)
	switch {
	case strings.TrimSpace(d.Name) == "":
		name, err := ParseBoundedLength(text, 2, 64)
		if err != nil {
			return d, InstructionContinue
		}
		d.Name = name
	case d.SheetURL == "":
		url, err := ParseHTTPURL(text)
		if err != nil {
			return d, InstructionContinue
		}
		d.SheetURL = url
	case d.ArtURL == "":
		url, err := ParseHTTPURL(text)
		if err != nil {
			return d, InstructionContinue
		}
		d.ArtURL = url
	default:
		d.Description = text
	}
	return d, InstructionContinue
}

func characterOnModal(_ context.Context, d CharacterDraft, customID string, values map[string]string) (CharacterDraft, Instruction) {
	if customID != "edit_details" {
		return d, InstructionContinue
	}
	if v, ok := values["description"]; ok {
		if parsed, err := ParseBoundedLength(v, 0, 500); err == nil {
			d.Description = parsed
		}
	}
	if v, ok := values["notes"]; ok {
		if parsed, err := ParseBoundedLength(v, 0, 500); err == nil {
			d.Notes = parsed
		}
	}
	if v, ok := values["tags"]; ok {
		if parsed, err := ParseCommaSeparatedList(v, maxCharacterTags); err == nil {
			d.Tags = parsed
		}
	}
	if v, ok := values["thread_url"]; ok && v != "" {
		if parsed, err := ParseHTTPURL(v); err == nil {
			d.ThreadURL = parsed
		}
	}
	if v, ok := values["token_url"]; ok && v != "" {
		if parsed, err := ParseHTTPURL(v); err == nil {
			d.TokenURL = parsed
		}
	}
	return d, InstructionContinue
}

// NewCharacterConfig builds the wizard Config for a character-creation
// session.
func NewCharacterConfig(timeout time.Duration) Config[CharacterDraft] {
	return Config[CharacterDraft]{
		Draft:                 CharacterDraft{},
		Render:                renderCharacterDraft,
		MissingRequiredFields: func(d CharacterDraft) []string { return CharacterMissingRequiredFields(d) },
		OnUserInput:           characterOnUserInput,
		OnModal:               characterOnModal,
		CancelMessage:         "Character creation cancelled.",
		AskTimeout:            timeout,
	}
}
