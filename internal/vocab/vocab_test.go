package vocab

import (
	"reflect"
	"testing"

	"gruebox/internal/engine"
)

func TestGroup(t *testing.T) {
	words := []engine.DictWord{
		{Word: "take", IsVerb: true},
		{Word: "lamp", IsNoun: true},
		{Word: "north", IsDir: true},
		{Word: "brass", IsAdj: true},
		{Word: "with", IsPrep: true},
		{Word: "score", IsMeta: true},
		{Word: "xyzzy", IsSpecial: true},
		{Word: "thing"},
		{Word: "open", IsVerb: true, IsNoun: true}, // multiple flags
	}

	g := Group(words)
	if g.TotalWords != 9 {
		t.Fatalf("expected 9 total words, got %d", g.TotalWords)
	}
	if !reflect.DeepEqual(g.Verbs, []string{"take", "open"}) {
		t.Errorf("unexpected verbs %v", g.Verbs)
	}
	if !reflect.DeepEqual(g.Nouns, []string{"lamp", "open"}) {
		t.Errorf("unexpected nouns %v", g.Nouns)
	}
	if !reflect.DeepEqual(g.Unclassified, []string{"thing"}) {
		t.Errorf("unexpected unclassified %v", g.Unclassified)
	}
	if len(g.Directions) != 1 || len(g.Adjectives) != 1 || len(g.Prepositions) != 1 ||
		len(g.Meta) != 1 || len(g.Special) != 1 {
		t.Errorf("unexpected grouping %+v", g)
	}
}

func TestGroupEmpty(t *testing.T) {
	g := Group(nil)
	if g.TotalWords != 0 {
		t.Fatalf("expected 0 words, got %d", g.TotalWords)
	}
	// Buckets marshal as [] rather than null.
	if g.Verbs == nil || g.Unclassified == nil {
		t.Error("buckets must be non-nil")
	}
}
