package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gruebox/internal/checkpoint"
	"gruebox/internal/engine"
	"gruebox/internal/engine/enginetest"
	"gruebox/internal/gamedir"
	"gruebox/internal/session"
)

func newTestServer(t *testing.T, fake *enginetest.Fake) *Server {
	t.Helper()
	factory := func(game string) (engine.Engine, error) {
		if game != "zork1" {
			return nil, fmt.Errorf("%w: %q", gamedir.ErrUnknownGame, game)
		}
		return fake, nil
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	registry := session.NewRegistry(factory, 0, logger)
	return New(registry, gamedir.New(t.TempDir()), nil, logger)
}

func startSession(t *testing.T, s *Server) string {
	t.Helper()
	_, out, err := s.handleStartGame(context.Background(), nil, &StartGameInput{GameName: "zork1"})
	require.NoError(t, err)
	require.Empty(t, out.Error)
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func TestStartGameReturnsInitialState(t *testing.T) {
	fake := &enginetest.Fake{
		ResetObservation: "West of House\nYou are standing in an open field.",
		Max:              350,
	}
	s := newTestServer(t, fake)

	_, out, err := s.handleStartGame(context.Background(), nil, &StartGameInput{GameName: "Zork1"})
	require.NoError(t, err)
	require.Empty(t, out.Error)

	assert.Equal(t, "zork1", out.Game)
	assert.Contains(t, out.Observation, "West of House")
	assert.Equal(t, 350, out.MaxScore)
	assert.Equal(t, 0, out.Score)
	assert.Contains(t, out.Message, "zork1")
}

func TestStartGameUnknownGame(t *testing.T) {
	s := newTestServer(t, &enginetest.Fake{})

	_, out, err := s.handleStartGame(context.Background(), nil, &StartGameInput{GameName: "no-such-game"})
	require.NoError(t, err)

	assert.NotEmpty(t, out.Error)
	assert.Contains(t, out.Hint, "list_games")
	assert.Empty(t, out.SessionID)
}

func TestActionRewardAndMilestone(t *testing.T) {
	fake := &enginetest.Fake{Max: 100}
	fake.StepFn = func(action string) (string, engine.Info, bool, error) {
		return "Taken.", engine.Info{Score: 25, Moves: 1}, false, nil
	}
	s := newTestServer(t, fake)
	id := startSession(t, s)

	_, out, err := s.handleAction(context.Background(), nil, &ActionInput{SessionID: id, Command: "take lamp"})
	require.NoError(t, err)
	require.Empty(t, out.Error)

	assert.Equal(t, 25, out.Reward)
	assert.Equal(t, []int{25}, out.MilestonesReached)
	assert.Contains(t, out.Message, "+25 points")
	assert.Contains(t, out.Message, "25% completion")
}

func TestActionGameOverMessage(t *testing.T) {
	fake := &enginetest.Fake{Max: 100}
	fake.StepFn = func(action string) (string, engine.Info, bool, error) {
		return "You have died.", engine.Info{Score: 10, Moves: 1}, true, nil
	}
	s := newTestServer(t, fake)
	id := startSession(t, s)

	_, out, err := s.handleAction(context.Background(), nil, &ActionInput{SessionID: id, Command: "jump"})
	require.NoError(t, err)

	assert.True(t, out.Done)
	assert.Contains(t, out.Message, "Game over")
	assert.Contains(t, out.Message, "start_game")
}

func TestActionUnknownSession(t *testing.T) {
	s := newTestServer(t, &enginetest.Fake{})

	_, out, err := s.handleAction(context.Background(), nil, &ActionInput{SessionID: "nope", Command: "look"})
	require.NoError(t, err)

	assert.NotEmpty(t, out.Error)
	assert.Contains(t, out.Hint, "start_game")
}

func TestActionEmptyCommand(t *testing.T) {
	s := newTestServer(t, &enginetest.Fake{})
	id := startSession(t, s)

	_, out, err := s.handleAction(context.Background(), nil, &ActionInput{SessionID: id, Command: "   "})
	require.NoError(t, err)

	assert.NotEmpty(t, out.Error)
	assert.Contains(t, out.Error, "command is required")
}

func TestCurrentStateReflectsLastAction(t *testing.T) {
	fake := &enginetest.Fake{Max: 100}
	fake.StepFn = func(action string) (string, engine.Info, bool, error) {
		return "Opened.", engine.Info{Score: 5, Moves: 1}, false, nil
	}
	s := newTestServer(t, fake)
	id := startSession(t, s)

	_, _, err := s.handleAction(context.Background(), nil, &ActionInput{SessionID: id, Command: "open mailbox"})
	require.NoError(t, err)

	_, out, err := s.handleCurrentState(context.Background(), nil, &SessionInput{SessionID: id})
	require.NoError(t, err)
	require.Empty(t, out.Error)

	assert.Equal(t, "Opened.", out.Observation)
	assert.Equal(t, 5, out.Score)
	assert.Equal(t, "zork1", out.Game)
}

func TestAvailableActionsFiltered(t *testing.T) {
	fake := &enginetest.Fake{
		Actions: []string{"take lamp", "open door", "take sword", "go north"},
	}
	s := newTestServer(t, fake)
	id := startSession(t, s)

	_, out, err := s.handleAvailableActions(context.Background(), nil, &AvailableActionsInput{
		SessionID: id,
		Filter:    []string{"take"},
	})
	require.NoError(t, err)
	require.Empty(t, out.Error)

	assert.Equal(t, []string{"take lamp", "take sword"}, out.Actions)
	assert.Equal(t, 2, out.Count)
}

func TestRecentHistoryClipsLongObservations(t *testing.T) {
	long := strings.Repeat("x", 300)
	fake := &enginetest.Fake{}
	fake.StepFn = func(action string) (string, engine.Info, bool, error) {
		return long, engine.Info{}, false, nil
	}
	s := newTestServer(t, fake)
	id := startSession(t, s)

	for i := 0; i < 7; i++ {
		_, _, err := s.handleAction(context.Background(), nil, &ActionInput{SessionID: id, Command: fmt.Sprintf("step %d", i)})
		require.NoError(t, err)
	}

	_, out, err := s.handleRecentHistory(context.Background(), nil, &RecentHistoryInput{SessionID: id})
	require.NoError(t, err)
	require.Empty(t, out.Error)

	assert.Equal(t, 5, out.Showing)
	assert.Equal(t, 7, out.TotalMoves)
	assert.Equal(t, 3, out.RecentHistory[0].Turn)
	assert.Equal(t, 7, out.RecentHistory[4].Turn)
	assert.Equal(t, "step 6", out.RecentHistory[4].Action)
	assert.Len(t, out.RecentHistory[0].Result, historyResultLimit+3)
	assert.True(t, strings.HasSuffix(out.RecentHistory[0].Result, "..."))
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	fake := &enginetest.Fake{Blob: []byte("engine-state")}
	s := newTestServer(t, fake)
	id := startSession(t, s)

	_, saved, err := s.handleSaveState(context.Background(), nil, &SessionInput{SessionID: id})
	require.NoError(t, err)
	require.Empty(t, saved.Error)
	require.NotEmpty(t, saved.StateData)

	decoded, err := base64.StdEncoding.DecodeString(saved.StateData)
	require.NoError(t, err)
	assert.Equal(t, []byte("engine-state"), decoded)

	_, loaded, err := s.handleLoadState(context.Background(), nil, &LoadStateInput{SessionID: id, StateData: saved.StateData})
	require.NoError(t, err)
	require.Empty(t, loaded.Error)
	assert.True(t, loaded.Loaded)
}

func TestLoadStateRejectsBadData(t *testing.T) {
	s := newTestServer(t, &enginetest.Fake{})
	id := startSession(t, s)

	_, out, err := s.handleLoadState(context.Background(), nil, &LoadStateInput{SessionID: id, StateData: "not base64!!"})
	require.NoError(t, err)

	assert.NotEmpty(t, out.Error)
	assert.False(t, out.Loaded)
	assert.Contains(t, out.Hint, "save_state")
}

func TestCheckpointsDisabledWithoutStore(t *testing.T) {
	s := newTestServer(t, &enginetest.Fake{})
	id := startSession(t, s)

	_, out, err := s.handleSaveCheckpoint(context.Background(), nil, &CheckpointInput{SessionID: id, Name: "start"})
	require.NoError(t, err)

	assert.False(t, out.Saved)
	assert.Contains(t, out.Error, "disabled")
}

func TestCheckpointRoundTrip(t *testing.T) {
	store, err := checkpoint.Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	defer store.Close()

	fake := &enginetest.Fake{Blob: []byte("before-troll-state")}
	s := newTestServer(t, fake)
	s.checkpoints = store
	id := startSession(t, s)

	_, saved, err := s.handleSaveCheckpoint(context.Background(), nil, &CheckpointInput{SessionID: id, Name: "before-troll"})
	require.NoError(t, err)
	require.Empty(t, saved.Error)
	assert.True(t, saved.Saved)
	assert.Equal(t, []string{"before-troll"}, saved.Checkpoints)

	fake.Blob = nil
	_, loaded, err := s.handleLoadCheckpoint(context.Background(), nil, &CheckpointInput{SessionID: id, Name: "before-troll"})
	require.NoError(t, err)
	require.Empty(t, loaded.Error)
	assert.True(t, loaded.Loaded)
	assert.Equal(t, []byte("before-troll-state"), fake.Blob)

	_, missing, err := s.handleLoadCheckpoint(context.Background(), nil, &CheckpointInput{SessionID: id, Name: "never-saved"})
	require.NoError(t, err)
	assert.NotEmpty(t, missing.Error)
	assert.Contains(t, missing.Hint, "save_checkpoint")
}

func TestEndGameSummary(t *testing.T) {
	fake := &enginetest.Fake{Max: 100}
	fake.StepFn = func(action string) (string, engine.Info, bool, error) {
		return "Taken.", engine.Info{Score: 50, Moves: 1}, false, nil
	}
	s := newTestServer(t, fake)
	id := startSession(t, s)

	_, _, err := s.handleAction(context.Background(), nil, &ActionInput{SessionID: id, Command: "take all"})
	require.NoError(t, err)

	_, out, err := s.handleEndGame(context.Background(), nil, &SessionInput{SessionID: id})
	require.NoError(t, err)
	require.Empty(t, out.Error)

	assert.True(t, out.Closed)
	assert.Equal(t, 50, out.FinalScore)
	assert.Equal(t, 100, out.MaxScore)
	assert.Equal(t, 1, out.TotalMoves)
	assert.Equal(t, "50%", out.Performance)
	assert.True(t, fake.Closed)

	_, again, err := s.handleEndGame(context.Background(), nil, &SessionInput{SessionID: id})
	require.NoError(t, err)
	assert.False(t, again.Closed)
	assert.Contains(t, again.Message, "already been closed")
}

func TestListGamesFromLibrary(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zork1.z5", "advent.z3", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("stub"), 0o644))
	}

	s := newTestServer(t, &enginetest.Fake{})
	s.library = gamedir.New(dir)

	_, out, err := s.handleListGames(context.Background(), nil, &ListGamesInput{})
	require.NoError(t, err)
	require.Empty(t, out.Error)

	assert.Equal(t, []string{"advent", "zork1"}, out.Games)
	assert.Equal(t, 2, out.TotalAvailable)
	assert.Equal(t, 2, out.Showing)

	_, limited, err := s.handleListGames(context.Background(), nil, &ListGamesInput{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"advent"}, limited.Games)
	assert.Equal(t, 2, limited.TotalAvailable)
	assert.Equal(t, 1, limited.Showing)
}
