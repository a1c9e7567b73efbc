// Package engine defines the contract for the external Z-machine
// interpreter. The interpreter is an opaque, stateful, non-reentrant
// collaborator: one instance belongs to exactly one session and every call
// into it must be serialized by the owner. Engine methods carry no
// context.Context because the underlying interpreter offers no cancellation;
// bindings are expected to enforce their own wall-clock deadline and return
// ErrUnresponsive when it is exceeded.
package engine

// WorldObject is one node in the interpreter's object tree. Parent, Child
// and Sibling are raw object numbers (0 when absent), not ownership: they
// are lookup keys into a freshly fetched object table and must never be
// held across engine calls.
type WorldObject struct {
	Num        int      `json:"num"`
	Name       string   `json:"name"`
	Parent     int      `json:"parent"`
	Child      int      `json:"child"`
	Sibling    int      `json:"sibling"`
	Attributes []string `json:"attributes,omitempty"`
}

// DictWord is one entry of the game's parser vocabulary with its
// part-of-speech flags. A word may carry several flags or none.
type DictWord struct {
	Word      string `json:"word"`
	IsVerb    bool   `json:"is_verb"`
	IsNoun    bool   `json:"is_noun"`
	IsAdj     bool   `json:"is_adj"`
	IsDir     bool   `json:"is_dir"`
	IsPrep    bool   `json:"is_prep"`
	IsMeta    bool   `json:"is_meta"`
	IsSpecial bool   `json:"is_special"`
}

// Info carries the bookkeeping the interpreter reports alongside a reset or
// step observation.
type Info struct {
	Score int `json:"score"`
	Moves int `json:"moves"`
}

// Engine is the interpreter surface consumed by the session layer.
//
// Reset and Step are the core play calls. Everything else is best-effort
// introspection: per title it may fail, and callers must degrade rather
// than abort. State and SetState move an opaque blob whose format only the
// interpreter understands.
type Engine interface {
	Reset() (observation string, info Info, err error)
	Step(action string) (observation string, info Info, done bool, err error)

	ValidActions() ([]string, error)
	TemplateActions() ([]string, error)

	Inventory() ([]WorldObject, error)
	PlayerLocation() (WorldObject, error)
	WorldObjects() ([]WorldObject, error)
	Dictionary() ([]DictWord, error)

	State() ([]byte, error)
	SetState(blob []byte) error
	WorldStateHash() (string, error)
	MaxScore() (int, error)
	Score() (int, error)

	Close() error
}

// Factory constructs a fresh Engine for a named game. The session registry
// calls it once per created session; the returned instance is exclusively
// owned by that session until Close.
type Factory func(gameName string) (Engine, error)
