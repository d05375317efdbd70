// Package postalid implements the postal-format entity ID scheme from
// spec.md §3: a fixed 4-character prefix identifying the entity kind,
// followed by a 6-character body matching
// ^[A-Z]\d[A-Z]\d[A-Z]\d$ (letter-digit-letter-digit-letter-digit).
// Legacy purely-numeric bodies are also accepted on read.
//
// Per spec.md §9's dynamic-dispatch redesign flag, there is no single
// runtime-typed parse-any-payload function. Each entity kind is a distinct
// Go type (UserID, QuestID, CharacterID, SummaryID) with its own Parse
// function, and the payload a caller hands in is itself a sealed union
// (Source) rather than an interface{} inspected with type switches.
package postalid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
)

// Kind is the 4-character prefix identifying an entity's type.
type Kind string

const (
	KindUser      Kind = "USER"
	KindQuest     Kind = "QUES"
	KindCharacter Kind = "CHAR"
	KindSummary   Kind = "SUMM"
)

var (
	bodyPattern   = regexp.MustCompile(`^[A-Z]\d[A-Z]\d[A-Z]\d$`)
	legacyPattern = regexp.MustCompile(`^[0-9]+$`)
)

// ID is the internal representation shared by every entity-kind wrapper
// type below. It is never exposed directly — callers use UserID, QuestID,
// CharacterID, or SummaryID.
type ID struct {
	kind Kind
	body string
}

func newID(kind Kind, body string) (ID, error) {
	if body == "" {
		return ID{}, fmt.Errorf("postal id body must not be empty")
	}
	if !bodyPattern.MatchString(body) && !legacyPattern.MatchString(body) {
		return ID{}, fmt.Errorf("postal id body %q does not match pattern %s and is not a legacy numeric body", body, bodyPattern.String())
	}
	return ID{kind: kind, body: body}, nil
}

func (id ID) String() string {
	if id.kind == "" {
		return ""
	}
	return string(id.kind) + id.body
}

// Kind reports the entity-kind prefix.
func (id ID) Kind() Kind { return id.kind }

// Body reports the 6-character (or legacy numeric) body.
func (id ID) Body() string { return id.body }

// IsLegacy reports whether this ID's body is a legacy all-digits body
// rather than the canonical letter-digit-letter-digit-letter-digit form.
func (id ID) IsLegacy() bool { return legacyPattern.MatchString(id.body) && !bodyPattern.MatchString(id.body) }

// IsZero reports whether this ID was never assigned.
func (id ID) IsZero() bool { return id.kind == "" && id.body == "" }

func generateBody() (string, error) {
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	out := make([]byte, 6)
	for i := 0; i < 6; i += 2 {
		l, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		out[i] = letters[l.Int64()]
		out[i+1] = byte('0') + byte(d.Int64())
	}
	return string(out), nil
}

func generate(kind Kind) (ID, error) {
	body, err := generateBody()
	if err != nil {
		return ID{}, fmt.Errorf("generating postal id body: %w", err)
	}
	return ID{kind: kind, body: body}, nil
}

// sourceKind tags which variant of Source is populated. It is unexported
// so Source behaves as a sealed union: the only way to build one is via
// the FromX constructors below.
type sourceKind int

const (
	sourceString sourceKind = iota
	sourceLegacyNumber
	sourceStructured
)

// Source is the sealed union of payload shapes a caller may hand to a
// Parse function: a full prefixed string, a bare legacy numeric body, or
// a structured value carrying either a pre-built full value or a
// prefix+number pair.
type Source struct {
	kind sourceKind

	str string

	legacyNumber int64

	structValue  string
	structPrefix Kind
	structNumber int64
}

// FromString builds a Source from a full postal ID string, e.g. "USERA1B2C3".
func FromString(s string) Source {
	return Source{kind: sourceString, str: s}
}

// FromLegacyNumber builds a Source from a bare legacy numeric body, as
// stored by pre-postal-ID documents.
func FromLegacyNumber(n int64) Source {
	return Source{kind: sourceLegacyNumber, legacyNumber: n}
}

// FromStructured builds a Source from a structured payload. Exactly one
// of (value) or (prefix, number) is expected to be meaningful; value wins
// if both are set.
func FromStructured(value string, prefix Kind, number int64) Source {
	return Source{kind: sourceStructured, structValue: value, structPrefix: prefix, structNumber: number}
}

// resolveBody extracts a candidate body string (without prefix) from a
// Source, given the expected kind for prefix-stripping.
func resolveBody(expected Kind, src Source) (string, error) {
	switch src.kind {
	case sourceString:
		s := src.str
		if len(s) > 4 && Kind(s[:4]) == expected {
			return s[4:], nil
		}
		// Bare body (no prefix) or legacy numeric string.
		return s, nil
	case sourceLegacyNumber:
		return strconv.FormatInt(src.legacyNumber, 10), nil
	case sourceStructured:
		if src.structValue != "" {
			return resolveBody(expected, FromString(src.structValue))
		}
		if src.structPrefix != "" && src.structPrefix != expected {
			return "", fmt.Errorf("structured postal id prefix %q does not match expected kind %q", src.structPrefix, expected)
		}
		return strconv.FormatInt(src.structNumber, 10), nil
	default:
		return "", fmt.Errorf("unrecognised postal id source")
	}
}

func parse(expected Kind, src Source) (ID, error) {
	body, err := resolveBody(expected, src)
	if err != nil {
		return ID{}, err
	}
	return newID(expected, body)
}

// --- Entity-kind variants -------------------------------------------------

type UserID ID
type QuestID ID
type CharacterID ID
type SummaryID ID

func (id UserID) String() string      { return ID(id).String() }
func (id UserID) Body() string        { return ID(id).Body() }
func (id UserID) Kind() Kind          { return ID(id).Kind() }
func (id UserID) IsLegacy() bool      { return ID(id).IsLegacy() }
func (id UserID) IsZero() bool        { return ID(id).IsZero() }

func (id QuestID) String() string { return ID(id).String() }
func (id QuestID) Body() string   { return ID(id).Body() }
func (id QuestID) Kind() Kind     { return ID(id).Kind() }
func (id QuestID) IsLegacy() bool { return ID(id).IsLegacy() }
func (id QuestID) IsZero() bool   { return ID(id).IsZero() }

func (id CharacterID) String() string { return ID(id).String() }
func (id CharacterID) Body() string   { return ID(id).Body() }
func (id CharacterID) Kind() Kind     { return ID(id).Kind() }
func (id CharacterID) IsLegacy() bool { return ID(id).IsLegacy() }
func (id CharacterID) IsZero() bool   { return ID(id).IsZero() }

func (id SummaryID) String() string { return ID(id).String() }
func (id SummaryID) Body() string   { return ID(id).Body() }
func (id SummaryID) Kind() Kind     { return ID(id).Kind() }
func (id SummaryID) IsLegacy() bool { return ID(id).IsLegacy() }
func (id SummaryID) IsZero() bool   { return ID(id).IsZero() }

func NewUserID(body string) (UserID, error) {
	id, err := newID(KindUser, body)
	return UserID(id), err
}

func NewQuestID(body string) (QuestID, error) {
	id, err := newID(KindQuest, body)
	return QuestID(id), err
}

func NewCharacterID(body string) (CharacterID, error) {
	id, err := newID(KindCharacter, body)
	return CharacterID(id), err
}

func NewSummaryID(body string) (SummaryID, error) {
	id, err := newID(KindSummary, body)
	return SummaryID(id), err
}

func GenerateUserID() (UserID, error) {
	id, err := generate(KindUser)
	return UserID(id), err
}

func GenerateQuestID() (QuestID, error) {
	id, err := generate(KindQuest)
	return QuestID(id), err
}

func GenerateCharacterID() (CharacterID, error) {
	id, err := generate(KindCharacter)
	return CharacterID(id), err
}

func GenerateSummaryID() (SummaryID, error) {
	id, err := generate(KindSummary)
	return SummaryID(id), err
}

func ParseUserID(src Source) (UserID, error) {
	id, err := parse(KindUser, src)
	return UserID(id), err
}

func ParseQuestID(src Source) (QuestID, error) {
	id, err := parse(KindQuest, src)
	return QuestID(id), err
}

func ParseCharacterID(src Source) (CharacterID, error) {
	id, err := parse(KindCharacter, src)
	return CharacterID(id), err
}

func ParseSummaryID(src Source) (SummaryID, error) {
	id, err := parse(KindSummary, src)
	return SummaryID(id), err
}
