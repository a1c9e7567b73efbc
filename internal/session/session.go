// Package session owns session identity, expiry, per-session serialization
// of engine access, visited-state deduplication, milestone tracking, and the
// append-only action history.
package session

import (
	"log/slog"
	"sync"
	"time"

	"gruebox/internal/engine"
)

// HistoryEntry is one completed action and the narrative it produced.
type HistoryEntry struct {
	Action      string `json:"action"`
	Observation string `json:"observation"`
}

// Session binds one exclusively owned engine instance to an opaque
// identifier. The engine is non-reentrant: every call that touches it runs
// inside the per-session critical section entered through Registry.With.
type Session struct {
	ID        string
	GameName  string
	CreatedAt time.Time

	// lastAccess is read and written only while holding the owning
	// registry's lock.
	lastAccess time.Time

	// mu serializes all engine access for this session. Registry.With uses
	// TryLock so a concurrent caller on the same session is rejected as
	// busy instead of queueing behind a possibly slow interpreter.
	mu sync.Mutex

	eng    engine.Engine
	logger *slog.Logger

	// Everything below is guarded by mu alongside the engine itself.
	current    *Snapshot
	prevScore  int
	visited    map[string]struct{}
	milestones map[int]struct{}
	history    []HistoryEntry
}

// Engine exposes the underlying interpreter to collaborators (graph
// extraction, action candidates, vocabulary) running inside the critical
// section. It must not be retained past the Registry.With callback.
func (s *Session) Engine() engine.Engine { return s.eng }

// Current returns the most recent snapshot, nil before the first reset.
func (s *Session) Current() *Snapshot { return s.current }

// Reset restarts the game from the beginning. Milestones and history are
// cleared; the visited-fingerprint set is kept, since returning to a state
// seen in an earlier life of the same session is still a revisit.
func (s *Session) Reset() (Snapshot, error) {
	obs, info, err := s.eng.Reset()
	if err != nil {
		return Snapshot{}, err
	}

	s.prevScore = 0
	s.history = nil
	s.milestones = make(map[int]struct{})

	snap := buildSnapshot(s.eng, obs, info, false, 0, s.logger)
	snap.Reward = 0
	s.RecordAndCheck(snap.Fingerprint)
	s.current = &snap
	return snap, nil
}

// StepResult is the derived bookkeeping attached to one completed action.
type StepResult struct {
	Snapshot  Snapshot
	Revisited bool
	// Milestones lists score-percentage thresholds newly crossed by this
	// step, ascending.
	Milestones []int
}

// Step submits one action, builds the resulting snapshot, and runs it
// through the visited-state and milestone trackers. The history entry is
// appended only for completed calls.
func (s *Session) Step(action string) (StepResult, error) {
	obs, info, done, err := s.eng.Step(action)
	if err != nil {
		return StepResult{}, err
	}

	snap := buildSnapshot(s.eng, obs, info, done, s.prevScore, s.logger)
	s.prevScore = snap.Score
	s.current = &snap
	s.history = append(s.history, HistoryEntry{Action: action, Observation: obs})

	return StepResult{
		Snapshot:   snap,
		Revisited:  s.RecordAndCheck(snap.Fingerprint),
		Milestones: s.checkMilestones(snap.Score, snap.MaxScore),
	}, nil
}

// History returns the newest count entries in oldest-first order, or the
// full history when count <= 0. The returned slice is a copy.
func (s *Session) History(count int) []HistoryEntry {
	entries := s.history
	if count > 0 && len(entries) > count {
		entries = entries[len(entries)-count:]
	}
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return out
}

// Moves reports the number of completed action calls since the last reset.
func (s *Session) Moves() int { return len(s.history) }

// SaveState returns the engine's opaque state blob.
func (s *Session) SaveState() ([]byte, error) {
	return s.eng.State()
}

// RestoreState hands an opaque blob back to the engine and realigns reward
// bookkeeping with the restored score. The current snapshot is refreshed
// lazily by the next play call.
func (s *Session) RestoreState(blob []byte) error {
	if err := s.eng.SetState(blob); err != nil {
		return err
	}
	if score, err := s.eng.Score(); err == nil {
		s.prevScore = score
	} else {
		s.logger.Warn("score unavailable after restore", "error", err)
	}
	return nil
}

// RecordAndCheck classifies fingerprint as novel or revisited. Membership
// is computed before insertion; an absent fingerprint is never a revisit
// and is not recorded, so missing engine data cannot produce false
// positives.
func (s *Session) RecordAndCheck(fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	_, seen := s.visited[fingerprint]
	s.visited[fingerprint] = struct{}{}
	return seen
}

// UniqueStateCount reports how many distinct fingerprints this session has
// ever produced.
func (s *Session) UniqueStateCount() int { return len(s.visited) }

// milestoneThresholds are fixed ascending score percentages, each reported
// at most once per session lifetime.
var milestoneThresholds = []int{25, 50, 75, 100}

// checkMilestones returns thresholds newly crossed at the given score, in
// ascending order. An unknown or zero max score yields none: an undefined
// percentage must not be treated as 100%.
func (s *Session) checkMilestones(score, maxScore int) []int {
	crossed := []int{}
	if maxScore <= 0 {
		return crossed
	}
	pct := float64(score) / float64(maxScore) * 100
	for _, m := range milestoneThresholds {
		if float64(m) > pct {
			break
		}
		if _, ok := s.milestones[m]; ok {
			continue
		}
		s.milestones[m] = struct{}{}
		crossed = append(crossed, m)
	}
	return crossed
}
