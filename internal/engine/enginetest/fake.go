// Package enginetest provides a scriptable in-memory Engine for tests.
package enginetest

import (
	"fmt"

	"gruebox/internal/engine"
)

// Fake implements engine.Engine. Zero value is usable: Reset succeeds with
// an empty observation and every introspection query returns its configured
// value (or error, when the matching Err field is set). Step behavior is
// overridden through StepFn; without it each step echoes the action and
// bumps the move counter.
type Fake struct {
	ResetObservation string
	ResetErr         error

	StepFn func(action string) (obs string, info engine.Info, done bool, err error)

	Max      int
	MaxErr   error
	ScoreErr error

	Actions      []string
	ActionsErr   error
	Templates    []string
	TemplatesErr error

	Items       []engine.WorldObject
	ItemsErr    error
	Location    engine.WorldObject
	LocationErr error
	Objects     []engine.WorldObject
	ObjectsErr  error
	Words       []engine.DictWord
	WordsErr    error

	Hash    string
	HashErr error

	Blob        []byte
	StateErr    error
	SetStateErr error

	Closed bool

	score int
	moves int
	Steps []string
}

var _ engine.Engine = (*Fake)(nil)

func (f *Fake) Reset() (string, engine.Info, error) {
	if f.ResetErr != nil {
		return "", engine.Info{}, f.ResetErr
	}
	f.score = 0
	f.moves = 0
	f.Steps = nil
	return f.ResetObservation, engine.Info{Score: 0, Moves: 0}, nil
}

func (f *Fake) Step(action string) (string, engine.Info, bool, error) {
	f.Steps = append(f.Steps, action)
	if f.StepFn != nil {
		obs, info, done, err := f.StepFn(action)
		if err == nil {
			f.score = info.Score
			f.moves = info.Moves
		}
		return obs, info, done, err
	}
	f.moves++
	return fmt.Sprintf("You %s.", action), engine.Info{Score: f.score, Moves: f.moves}, false, nil
}

func (f *Fake) ValidActions() ([]string, error)    { return f.Actions, f.ActionsErr }
func (f *Fake) TemplateActions() ([]string, error) { return f.Templates, f.TemplatesErr }

func (f *Fake) Inventory() ([]engine.WorldObject, error) { return f.Items, f.ItemsErr }

func (f *Fake) PlayerLocation() (engine.WorldObject, error) {
	return f.Location, f.LocationErr
}

func (f *Fake) WorldObjects() ([]engine.WorldObject, error) { return f.Objects, f.ObjectsErr }
func (f *Fake) Dictionary() ([]engine.DictWord, error)      { return f.Words, f.WordsErr }

func (f *Fake) State() ([]byte, error) { return f.Blob, f.StateErr }

func (f *Fake) SetState(blob []byte) error {
	if f.SetStateErr != nil {
		return f.SetStateErr
	}
	f.Blob = blob
	return nil
}

func (f *Fake) WorldStateHash() (string, error) { return f.Hash, f.HashErr }
func (f *Fake) MaxScore() (int, error)          { return f.Max, f.MaxErr }
func (f *Fake) Score() (int, error)             { return f.score, f.ScoreErr }

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
