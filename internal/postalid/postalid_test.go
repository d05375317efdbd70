package postalid

import "testing"

func TestNewUserID_ValidBody(t *testing.T) {
	id, err := NewUserID("A0B1C2")
	if err != nil {
		t.Fatalf("expected valid body, got error: %v", err)
	}
	if id.String() != "USERA0B1C2" {
		t.Fatalf("expected USERA0B1C2, got %q", id.String())
	}
	if id.IsLegacy() {
		t.Fatal("canonical body should not be legacy")
	}
}

func TestNewUserID_InvalidBody(t *testing.T) {
	cases := []string{
		"A00B1C", // digit where a letter is expected
		"AA1B2C", // two letters in a row
		"A1B2C",  // too short
		"A1B2C33",
		"",
	}
	for _, body := range cases {
		if _, err := NewUserID(body); err == nil {
			t.Fatalf("expected error for invalid body %q", body)
		}
	}
}

func TestNewUserID_LegacyAllDigitsAccepted(t *testing.T) {
	id, err := NewUserID("482913")
	if err != nil {
		t.Fatalf("legacy all-digit body should be accepted on read: %v", err)
	}
	if !id.IsLegacy() {
		t.Fatal("expected all-digit body to be reported as legacy")
	}
	if id.String() != "USER482913" {
		t.Fatalf("unexpected string form: %q", id.String())
	}
}

func TestGenerateQuestID_ProducesCanonicalBody(t *testing.T) {
	for i := 0; i < 50; i++ {
		id, err := GenerateQuestID()
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if id.IsLegacy() {
			t.Fatalf("generated id should never be legacy-shaped: %s", id.String())
		}
		if !bodyPattern.MatchString(id.Body()) {
			t.Fatalf("generated body %q does not match canonical pattern", id.Body())
		}
		if id.Kind() != KindQuest {
			t.Fatalf("expected quest kind, got %q", id.Kind())
		}
	}
}

func TestParseUserID_FromString_WithPrefix(t *testing.T) {
	id, err := ParseUserID(FromString("USERA1B2C3"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if id.Body() != "A1B2C3" {
		t.Fatalf("expected stripped body A1B2C3, got %q", id.Body())
	}
}

func TestParseUserID_FromString_BareBody(t *testing.T) {
	id, err := ParseUserID(FromString("A1B2C3"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if id.String() != "USERA1B2C3" {
		t.Fatalf("expected USERA1B2C3, got %q", id.String())
	}
}

func TestParseUserID_FromLegacyNumber(t *testing.T) {
	id, err := ParseUserID(FromLegacyNumber(100402))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !id.IsLegacy() {
		t.Fatal("expected legacy numeric source to produce a legacy id")
	}
	if id.String() != "USER100402" {
		t.Fatalf("unexpected string form: %q", id.String())
	}
}

func TestParseQuestID_FromStructured_Value(t *testing.T) {
	id, err := ParseQuestID(FromStructured("QUESB2C3D4", "", 0))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if id.Body() != "B2C3D4" {
		t.Fatalf("expected body B2C3D4, got %q", id.Body())
	}
}

func TestParseQuestID_FromStructured_PrefixNumber(t *testing.T) {
	id, err := ParseQuestID(FromStructured("", KindQuest, 771))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if id.String() != "QUES771" {
		t.Fatalf("unexpected string form: %q", id.String())
	}
}

func TestParseQuestID_FromStructured_MismatchedPrefixRejected(t *testing.T) {
	if _, err := ParseQuestID(FromStructured("", KindUser, 771)); err == nil {
		t.Fatal("expected error for mismatched structured prefix")
	}
}

func TestParseCharacterID_RoundTripsGeneratedID(t *testing.T) {
	generated, err := GenerateCharacterID()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	parsed, err := ParseCharacterID(FromString(generated.String()))
	if err != nil {
		t.Fatalf("parse of generated id failed: %v", err)
	}
	if parsed != generated {
		t.Fatalf("round trip mismatch: %v != %v", parsed, generated)
	}
}

func TestIDIsZero(t *testing.T) {
	var id UserID
	if !id.IsZero() {
		t.Fatal("zero-value UserID should report IsZero")
	}
	generated, _ := GenerateUserID()
	if generated.IsZero() {
		t.Fatal("generated UserID should not report IsZero")
	}
}
