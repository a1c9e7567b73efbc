package gamedir

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverRecognizedExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Zork1.z5")
	writeFile(t, dir, "advent.z3")
	writeFile(t, dir, "notes.txt")
	writeFile(t, dir, "detective.z8")

	lib := New(dir)
	games, err := lib.Discover()
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(games) != 3 {
		t.Fatalf("expected 3 games, got %v", games)
	}
	if _, ok := games["zork1"]; !ok {
		t.Error("game names must be lowercased base filenames")
	}

	names, err := lib.Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 3 || names[0] != "advent" {
		t.Errorf("expected sorted names starting with advent, got %v", names)
	}
}

func TestDiscoverMissingDirectory(t *testing.T) {
	lib := New(filepath.Join(t.TempDir(), "nope"))
	games, err := lib.Discover()
	if err != nil {
		t.Fatalf("missing directory must not error: %v", err)
	}
	if len(games) != 0 {
		t.Fatalf("expected empty map, got %v", games)
	}
}

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zork1.z5")
	lib := New(dir)

	path, err := lib.Lookup("ZORK1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if filepath.Base(path) != "zork1.z5" {
		t.Errorf("unexpected path %q", path)
	}

	_, err = lib.Lookup("zork9")
	if !errors.Is(err, ErrUnknownGame) {
		t.Fatalf("expected ErrUnknownGame, got %v", err)
	}
}

func TestRecommended(t *testing.T) {
	dir := t.TempDir()
	libIni := "[recommended]\nclassic_series = zork1, Zork2 , zork3\nshorter_games = detective\n"
	if err := os.WriteFile(filepath.Join(dir, "library.ini"), []byte(libIni), 0o644); err != nil {
		t.Fatal(err)
	}

	picks := New(dir).Recommended()
	if picks == nil {
		t.Fatal("expected recommendations")
	}
	classics := picks["classic_series"]
	if len(classics) != 3 || classics[1] != "zork2" {
		t.Errorf("unexpected classics %v", classics)
	}
	if len(picks["shorter_games"]) != 1 {
		t.Errorf("unexpected picks %v", picks)
	}
}

func TestRecommendedAbsent(t *testing.T) {
	if picks := New(t.TempDir()).Recommended(); picks != nil {
		t.Fatalf("expected nil without library.ini, got %v", picks)
	}
}
