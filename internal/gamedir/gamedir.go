// Package gamedir discovers playable game files on disk and exposes each by
// its lowercase base filename as the selectable game identifier.
package gamedir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// ErrUnknownGame reports a game name with no matching file in the library.
var ErrUnknownGame = errors.New("unknown game")

// storyExtensions are the recognized Z-machine story file suffixes.
var storyExtensions = map[string]bool{
	".z3": true,
	".z4": true,
	".z5": true,
	".z8": true,
}

// libraryFile is an optional INI next to the story files carrying curated
// picks shown by list_games, e.g.
//
//	[recommended]
//	classic_series = zork1, zork2, zork3
//	shorter_games  = detective, advent
const libraryFile = "library.ini"

// Library indexes one directory of story files. Discovery reads the
// directory fresh on each call so files added at runtime are picked up.
type Library struct {
	dir string
}

func New(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the directory this library reads from.
func (l *Library) Dir() string { return l.dir }

// Discover maps every recognized game name to its file path. A missing
// directory yields an empty map, not an error.
func (l *Library) Discover() (map[string]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading games directory: %w", err)
	}

	games := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !storyExtensions[ext] {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		games[name] = filepath.Join(l.dir, e.Name())
	}
	return games, nil
}

// Names returns the sorted list of selectable game names.
func (l *Library) Names() ([]string, error) {
	games, err := l.Discover()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(games))
	for name := range games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Lookup resolves a game name (case-insensitive) to its file path.
func (l *Library) Lookup(name string) (string, error) {
	games, err := l.Discover()
	if err != nil {
		return "", err
	}
	path, ok := games[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGame, name)
	}
	return path, nil
}

// Recommended reads curated picks from library.ini when present. Absence of
// the file (or any recommended section) yields nil; a broken file is also
// treated as absent since recommendations are purely advisory.
func (l *Library) Recommended() map[string][]string {
	cfg, err := ini.Load(filepath.Join(l.dir, libraryFile))
	if err != nil {
		return nil
	}
	sec := cfg.Section("recommended")
	if len(sec.Keys()) == 0 {
		return nil
	}

	picks := make(map[string][]string)
	for _, key := range sec.Keys() {
		var names []string
		for _, v := range strings.Split(key.String(), ",") {
			if v = strings.TrimSpace(v); v != "" {
				names = append(names, strings.ToLower(v))
			}
		}
		if len(names) > 0 {
			picks[key.Name()] = names
		}
	}
	if len(picks) == 0 {
		return nil
	}
	return picks
}
