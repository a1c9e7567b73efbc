package session

import (
	"fmt"
	"log/slog"

	"gruebox/internal/engine"
)

// Snapshot is the canonical, immutable result of one reset or step call
// after best-effort enrichment. Exactly one snapshot is current per session.
type Snapshot struct {
	Observation string   `json:"observation"`
	Score       int      `json:"score"`
	MaxScore    int      `json:"max_score"`
	Moves       int      `json:"moves"`
	Done        bool     `json:"done"`
	Reward      int      `json:"reward"`
	Inventory   []string `json:"inventory"`
	Location    string   `json:"location"`

	// Fingerprint is a content hash of the world object tree, empty when
	// the interpreter could not produce one.
	Fingerprint string `json:"-"`
}

// Progress renders "score/max (pct%)", or a bare point count when the game
// reports no maximum.
func (s Snapshot) Progress() string {
	if s.MaxScore > 0 {
		pct := int(float64(s.Score)/float64(s.MaxScore)*100 + 0.5)
		return fmt.Sprintf("%d/%d (%d%%)", s.Score, s.MaxScore, pct)
	}
	return fmt.Sprintf("%d points", s.Score)
}

// buildSnapshot turns one engine interaction's raw outputs into a Snapshot.
// Each auxiliary sub-query (max score, inventory, location, fingerprint) is
// best-effort per title: a failure degrades to a placeholder value and is
// logged, never surfaced as an error.
func buildSnapshot(eng engine.Engine, obs string, info engine.Info, done bool, prevScore int, logger *slog.Logger) Snapshot {
	snap := Snapshot{
		Observation: obs,
		Score:       info.Score,
		Moves:       info.Moves,
		Done:        done,
		Reward:      info.Score - prevScore,
		Inventory:   []string{},
		Location:    "Unknown",
	}

	if max, err := eng.MaxScore(); err == nil {
		snap.MaxScore = max
	} else {
		logger.Warn("max score unavailable", "error", err)
	}

	if items, err := eng.Inventory(); err == nil {
		for _, it := range items {
			snap.Inventory = append(snap.Inventory, it.Name)
		}
	} else {
		logger.Warn("inventory unavailable", "error", err)
	}

	if loc, err := eng.PlayerLocation(); err == nil && loc.Name != "" {
		snap.Location = loc.Name
	} else if err != nil {
		logger.Warn("player location unavailable", "error", err)
	}

	if hash, err := eng.WorldStateHash(); err == nil {
		snap.Fingerprint = hash
	} else {
		logger.Warn("world state hash unavailable", "error", err)
	}

	return snap
}
