// Package vocab groups the game's parser dictionary by part of speech.
package vocab

import "gruebox/internal/engine"

// Grouped buckets every dictionary word by its flags. A word carrying
// several flags appears in every matching bucket; a word carrying none
// lands in Unclassified.
type Grouped struct {
	TotalWords   int      `json:"total_words"`
	Verbs        []string `json:"verbs"`
	Nouns        []string `json:"nouns"`
	Adjectives   []string `json:"adjectives"`
	Directions   []string `json:"directions"`
	Prepositions []string `json:"prepositions"`
	Meta         []string `json:"meta"`
	Special      []string `json:"special"`
	Unclassified []string `json:"unclassified"`
}

// Group partitions words preserving dictionary order within each bucket.
func Group(words []engine.DictWord) Grouped {
	g := Grouped{
		TotalWords:   len(words),
		Verbs:        []string{},
		Nouns:        []string{},
		Adjectives:   []string{},
		Directions:   []string{},
		Prepositions: []string{},
		Meta:         []string{},
		Special:      []string{},
		Unclassified: []string{},
	}
	for _, w := range words {
		classified := false
		if w.IsVerb {
			g.Verbs = append(g.Verbs, w.Word)
			classified = true
		}
		if w.IsNoun {
			g.Nouns = append(g.Nouns, w.Word)
			classified = true
		}
		if w.IsAdj {
			g.Adjectives = append(g.Adjectives, w.Word)
			classified = true
		}
		if w.IsDir {
			g.Directions = append(g.Directions, w.Word)
			classified = true
		}
		if w.IsPrep {
			g.Prepositions = append(g.Prepositions, w.Word)
			classified = true
		}
		if w.IsMeta {
			g.Meta = append(g.Meta, w.Word)
			classified = true
		}
		if w.IsSpecial {
			g.Special = append(g.Special, w.Word)
			classified = true
		}
		if !classified {
			g.Unclassified = append(g.Unclassified, w.Word)
		}
	}
	return g
}
