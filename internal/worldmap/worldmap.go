// Package worldmap derives structural views of the game world from the
// interpreter's flat object table. Every query fetches the table fresh: the
// engine may rebuild it between calls in ways we cannot observe cheaply, so
// nothing here is cached or incrementally maintained.
package worldmap

import (
	"errors"
	"fmt"
	"strings"

	"gruebox/internal/engine"
)

// ErrNoSuchObject reports a name that matched nothing in the object table.
var ErrNoSuchObject = errors.New("no such object")

// Object is the query-result projection of one world object.
type Object struct {
	Num        int      `json:"num"`
	Name       string   `json:"name"`
	Parent     int      `json:"parent"`
	Child      int      `json:"child"`
	Sibling    int      `json:"sibling"`
	Attributes []string `json:"attributes,omitempty"`
}

// Location is one room of the derived location graph.
type Location struct {
	ID      int      `json:"id"`
	Objects []string `json:"objects"`
	Exits   []string `json:"exits"`
}

func project(o engine.WorldObject) Object {
	return Object{
		Num:        o.Num,
		Name:       o.Name,
		Parent:     o.Parent,
		Child:      o.Child,
		Sibling:    o.Sibling,
		Attributes: o.Attributes,
	}
}

// walkChain enumerates the singly linked child -> sibling chain starting at
// start. Engine data can be malformed or cyclic, so the walk tracks visited
// ids and stops the moment an id repeats; a link to a missing id is treated
// as end-of-chain, not an error.
func walkChain(index map[int]engine.WorldObject, start int) []engine.WorldObject {
	var out []engine.WorldObject
	seen := make(map[int]bool)
	for id := start; id != 0; {
		if seen[id] {
			break
		}
		seen[id] = true
		obj, ok := index[id]
		if !ok {
			break
		}
		out = append(out, obj)
		id = obj.Sibling
	}
	return out
}

func buildIndex(objects []engine.WorldObject) map[int]engine.WorldObject {
	index := make(map[int]engine.WorldObject, len(objects))
	for _, o := range objects {
		index[o.Num] = o
	}
	return index
}

// ObjectsInLocation lists the direct children (one level, not recursive) of
// a location. An empty locationName targets the player's current location;
// otherwise the first object whose name matches case-insensitively is used.
// Returns the resolved location name alongside the children.
func ObjectsInLocation(eng engine.Engine, locationName string) (string, []Object, error) {
	objects, err := eng.WorldObjects()
	if err != nil {
		return "", nil, fmt.Errorf("fetching world objects: %w", err)
	}
	index := buildIndex(objects)

	var target engine.WorldObject
	if locationName == "" {
		target, err = eng.PlayerLocation()
		if err != nil {
			return "", nil, fmt.Errorf("resolving player location: %w", err)
		}
	} else {
		found := false
		for _, o := range objects {
			if strings.EqualFold(o.Name, locationName) {
				target = o
				found = true
				break
			}
		}
		if !found {
			return "", nil, fmt.Errorf("location %q: %w", locationName, ErrNoSuchObject)
		}
	}

	children := walkChain(index, target.Child)
	out := make([]Object, 0, len(children))
	for _, c := range children {
		out = append(out, project(c))
	}
	return target.Name, out, nil
}

// directionWords are the movement words checked against the engine's valid
// actions when deriving exits for the current location.
var directionWords = []string{
	"north", "south", "east", "west",
	"northeast", "northwest", "southeast", "southwest",
	"up", "down", "in", "out",
}

// Graph classifies every object with a child reference and no real parent
// (parent absent or 0) as a location, then lists each location's direct
// children. The heuristic is approximate and may misclassify some portable
// containers as rooms in some titles; it is kept as-is.
//
// Exits are filled only for the player's current location, from direction
// words present among the engine's valid actions; the object tree itself
// does not encode exits. Both lookups are best-effort.
func Graph(eng engine.Engine) (map[string]Location, error) {
	objects, err := eng.WorldObjects()
	if err != nil {
		return nil, fmt.Errorf("fetching world objects: %w", err)
	}
	index := buildIndex(objects)

	currentName := ""
	if loc, err := eng.PlayerLocation(); err == nil {
		currentName = loc.Name
	}
	var currentExits []string
	if currentName != "" {
		if actions, err := eng.ValidActions(); err == nil {
			currentExits = exitsFromActions(actions)
		}
	}

	graph := make(map[string]Location)
	for _, o := range objects {
		if o.Child == 0 || o.Parent != 0 {
			continue
		}
		names := []string{}
		for _, c := range walkChain(index, o.Child) {
			names = append(names, c.Name)
		}
		loc := Location{ID: o.Num, Objects: names, Exits: []string{}}
		if o.Name == currentName && currentExits != nil {
			loc.Exits = currentExits
		}
		graph[o.Name] = loc
	}
	return graph, nil
}

func exitsFromActions(actions []string) []string {
	available := make(map[string]bool, len(actions))
	for _, a := range actions {
		la := strings.ToLower(strings.TrimSpace(a))
		available[la] = true
		available[strings.TrimPrefix(la, "go ")] = true
	}
	exits := []string{}
	for _, d := range directionWords {
		if available[d] {
			exits = append(exits, d)
		}
	}
	return exits
}

// Details returns the full projection of the first object whose name
// matches case-insensitively, or ErrNoSuchObject, never a panic, for an
// absent name.
func Details(eng engine.Engine, name string) (Object, error) {
	objects, err := eng.WorldObjects()
	if err != nil {
		return Object{}, fmt.Errorf("fetching world objects: %w", err)
	}
	for _, o := range objects {
		if strings.EqualFold(o.Name, name) {
			return project(o), nil
		}
	}
	return Object{}, fmt.Errorf("object %q: %w", name, ErrNoSuchObject)
}
