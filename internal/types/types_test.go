package types

import (
	"testing"

	"bitbucket.org/creachadair/stringset"
	"github.com/google/go-cmp/cmp"
)

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{
		">":          DirectionForward,
		"forward":    DirectionForward,
		"<":          DirectionReverse,
		"=":          DirectionReversible,
		"":           DirectionReversible,
		" <=> ":      DirectionReversible,
		"Reversible": DirectionReversible,
	}
	for in, want := range cases {
		got, err := ParseDirection(in)
		if err != nil {
			t.Fatalf("ParseDirection(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseDirection(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseDirection("sideways"); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}

func TestReactionString(t *testing.T) {
	r := &Reaction{ID: "rxn00001", Equation: "(1) cpd00001[0] <=> (1) cpd00002[0]"}
	if got := r.String(); got != "rxn00001: (1) cpd00001[0] <=> (1) cpd00002[0]" {
		t.Fatalf("unexpected String(): %s", got)
	}
	if got := (&Reaction{ID: "rxn00002"}).String(); got != "rxn00002" {
		t.Fatalf("expected bare id without equation, got %s", got)
	}
}

func TestMapping(t *testing.T) {
	m := Mapping{}
	m.Put("rxn1", "roleA", "roleB")
	m.Put("rxn2", "roleB")
	m.Put("rxn1", "roleA")

	if diff := cmp.Diff([]string{"roleA", "roleB"}, m["rxn1"].Elements()); diff != "" {
		t.Errorf("rxn1 roles mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"roleA", "roleB"}, m.Flatten().Elements()); diff != "" {
		t.Errorf("Flatten mismatch (-want +got):\n%s", diff)
	}
	if !m.Keys().Equals(stringset.New("rxn1", "rxn2")) {
		t.Errorf("Keys = %v", m.Keys())
	}
	if !(Mapping{}).Flatten().Empty() {
		t.Errorf("empty mapping should flatten to the empty set")
	}
}
