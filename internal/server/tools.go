package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"gruebox/internal/actions"
	"gruebox/internal/checkpoint"
	"gruebox/internal/engine"
	"gruebox/internal/gamedir"
	"gruebox/internal/session"
	"gruebox/internal/vocab"
	"gruebox/internal/worldmap"
)

// toolError is embedded in every output. A failed call fills it and leaves
// the rest of the output zeroed; the session (when one exists) stays usable
// for the next call.
type toolError struct {
	Error string `json:"error,omitempty" jsonschema:"Error message when the call failed"`
	Hint  string `json:"hint,omitempty" jsonschema:"Suggested recovery step"`
}

// fail translates the error taxonomy into an {error, hint} pair.
func (s *Server) fail(err error) toolError {
	s.logger.Warn("tool call failed", "error", err)
	te := toolError{Error: err.Error()}
	switch {
	case errors.Is(err, session.ErrNotFound):
		te.Hint = "Session not found or expired. Call start_game to begin a new one."
	case errors.Is(err, session.ErrBusy):
		te.Hint = "Another call is in flight for this session. Retry shortly."
	case errors.Is(err, gamedir.ErrUnknownGame):
		te.Hint = "Call list_games to see valid game names."
	case errors.Is(err, engine.ErrLoadFailed):
		te.Hint = "The engine could not load this game. Call list_games to see valid names."
	case errors.Is(err, engine.ErrUnresponsive):
		te.Hint = "The engine did not respond in time. Call start_game to begin a fresh session."
	case errors.Is(err, engine.ErrInvalidAction):
		te.Hint = "The engine rejected this command. Call available_actions for suggestions."
	case errors.Is(err, engine.ErrBadState):
		te.Hint = "The state blob was rejected. Pass data returned by save_state for this game."
	case errors.Is(err, worldmap.ErrNoSuchObject):
		te.Hint = "Use look_around or location_graph to see known names."
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		te.Hint = "Call save_checkpoint first, or check the checkpoint name."
	}
	return te
}

// stateOut is the flat snapshot shape shared by play tools.
type stateOut struct {
	Observation string   `json:"observation,omitempty" jsonschema:"Narrative result"`
	Score       int      `json:"score" jsonschema:"Current score"`
	MaxScore    int      `json:"max_score" jsonschema:"Maximum achievable score (0 when unknown)"`
	Moves       int      `json:"moves" jsonschema:"Moves taken"`
	Done        bool     `json:"done" jsonschema:"Whether the game has ended"`
	Reward      int      `json:"reward" jsonschema:"Score change from the last action"`
	Inventory   []string `json:"inventory,omitempty" jsonschema:"Carried item names"`
	Location    string   `json:"location,omitempty" jsonschema:"Current location name"`
	Progress    string   `json:"progress,omitempty" jsonschema:"Score progress summary"`
}

func stateFields(snap session.Snapshot) stateOut {
	return stateOut{
		Observation: snap.Observation,
		Score:       snap.Score,
		MaxScore:    snap.MaxScore,
		Moves:       snap.Moves,
		Done:        snap.Done,
		Reward:      snap.Reward,
		Inventory:   snap.Inventory,
		Location:    snap.Location,
		Progress:    snap.Progress(),
	}
}

type ListGamesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of games to return (0 for all)"`
}

type ListGamesOutput struct {
	toolError
	Games          []string            `json:"games,omitempty" jsonschema:"Game names accepted by start_game"`
	TotalAvailable int                 `json:"total_available" jsonschema:"Total games in the library"`
	Showing        int                 `json:"showing" jsonschema:"How many names are in this response"`
	Recommended    map[string][]string `json:"recommended,omitempty" jsonschema:"Curated picks by category"`
	GamesDir       string              `json:"games_dir,omitempty" jsonschema:"Directory the library reads from"`
}

func (s *Server) handleListGames(_ context.Context, _ *mcp.CallToolRequest, in *ListGamesInput) (*mcp.CallToolResult, *ListGamesOutput, error) {
	if in == nil {
		in = &ListGamesInput{}
	}
	out := &ListGamesOutput{}

	s.registry.SweepExpired()
	names, err := s.library.Names()
	if err != nil {
		out.toolError = s.fail(err)
		return nil, out, nil
	}

	out.TotalAvailable = len(names)
	if in.Limit > 0 && len(names) > in.Limit {
		names = names[:in.Limit]
	}
	out.Games = names
	out.Showing = len(names)
	out.Recommended = s.library.Recommended()
	out.GamesDir = s.library.Dir()
	return nil, out, nil
}

type StartGameInput struct {
	GameName string `json:"game_name,omitempty" jsonschema:"Name of the game to load (default zork1); call list_games to browse"`
}

type StartGameOutput struct {
	toolError
	stateOut
	SessionID string `json:"session_id,omitempty" jsonschema:"Identifier for all further calls on this session"`
	Game      string `json:"game,omitempty" jsonschema:"Loaded game name"`
	Message   string `json:"message,omitempty"`
}

func (s *Server) handleStartGame(_ context.Context, _ *mcp.CallToolRequest, in *StartGameInput) (*mcp.CallToolResult, *StartGameOutput, error) {
	if in == nil {
		in = &StartGameInput{}
	}
	game := strings.ToLower(strings.TrimSpace(in.GameName))
	if game == "" {
		game = "zork1"
	}
	out := &StartGameOutput{}

	sess, snap, err := s.registry.Create(game)
	if err != nil {
		out.toolError = s.fail(err)
		return nil, out, nil
	}

	out.stateOut = stateFields(snap)
	out.SessionID = sess.ID
	out.Game = game
	out.Message = fmt.Sprintf("'%s' loaded. Max score: %d. Use session_id for every further call.", game, snap.MaxScore)
	return nil, out, nil
}

type ActionInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by start_game"`
	Command   string `json:"command" jsonschema:"Natural-language command, e.g. 'open mailbox' or 'go north'"`
}

type ActionOutput struct {
	toolError
	stateOut
	RevisitedState    bool   `json:"revisited_state" jsonschema:"True when this state was seen before (loop warning)"`
	MilestonesReached []int  `json:"milestones_reached" jsonschema:"Completion percentages newly crossed this turn, ascending"`
	Message           string `json:"message,omitempty" jsonschema:"Present when the score changes, the game ends, a loop is detected, or a milestone is crossed"`
}

func (s *Server) handleAction(_ context.Context, _ *mcp.CallToolRequest, in *ActionInput) (*mcp.CallToolResult, *ActionOutput, error) {
	out := &ActionOutput{MilestonesReached: []int{}}
	if in == nil || strings.TrimSpace(in.Command) == "" {
		out.toolError = s.fail(fmt.Errorf("%w: command is required", engine.ErrInvalidAction))
		return nil, out, nil
	}

	err := s.registry.With(in.SessionID, func(sess *session.Session) error {
		res, err := sess.Step(strings.TrimSpace(in.Command))
		if err != nil {
			return err
		}
		out.stateOut = stateFields(res.Snapshot)
		out.RevisitedState = res.Revisited
		out.MilestonesReached = res.Milestones
		out.Message = composeMessage(res)
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
	}
	return nil, out, nil
}

func composeMessage(res session.StepResult) string {
	var parts []string
	snap := res.Snapshot
	switch {
	case snap.Done && snap.MaxScore > 0 && snap.Score >= snap.MaxScore:
		parts = append(parts, fmt.Sprintf("You WON! Final score: %d/%d.", snap.Score, snap.MaxScore))
	case snap.Done:
		parts = append(parts, fmt.Sprintf("Game over. Score: %d/%d. Call start_game to try again.", snap.Score, snap.MaxScore))
	case snap.Reward > 0:
		parts = append(parts, fmt.Sprintf("+%d points. Score: %s.", snap.Reward, snap.Progress()))
	case snap.Reward < 0:
		parts = append(parts, fmt.Sprintf("%d points. Score: %s.", snap.Reward, snap.Progress()))
	}
	if res.Revisited {
		parts = append(parts, "You have returned to a previously visited state - you may be going in circles. Consider a different approach.")
	}
	for _, m := range res.Milestones {
		parts = append(parts, fmt.Sprintf("Milestone reached: %d%% completion!", m))
	}
	return strings.Join(parts, " | ")
}

type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by start_game"`
}

type CurrentStateOutput struct {
	toolError
	stateOut
	Game string `json:"game,omitempty"`
}

func (s *Server) handleCurrentState(_ context.Context, _ *mcp.CallToolRequest, in *SessionInput) (*mcp.CallToolResult, *CurrentStateOutput, error) {
	out := &CurrentStateOutput{}
	err := s.registry.With(sessionID(in), func(sess *session.Session) error {
		snap := sess.Current()
		if snap == nil {
			return fmt.Errorf("no state available; call reset_game")
		}
		out.stateOut = stateFields(*snap)
		out.Game = sess.GameName
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
	}
	return nil, out, nil
}

type AvailableActionsInput struct {
	SessionID    string   `json:"session_id" jsonschema:"Session ID returned by start_game"`
	UseTemplates bool     `json:"use_templates,omitempty" jsonschema:"Use the template generator (objects x verb templates) instead of direct suggestions"`
	Filter       []string `json:"filter,omitempty" jsonschema:"Keep only actions containing at least one of these keywords"`
	MaxCount     int      `json:"max_count,omitempty" jsonschema:"Truncate the list to this many entries (0 for unlimited)"`
}

type AvailableActionsOutput struct {
	toolError
	Actions []string `json:"actions,omitempty" jsonschema:"Candidate command strings, engine order preserved"`
	Count   int      `json:"count" jsonschema:"Number of actions returned"`
}

func (s *Server) handleAvailableActions(_ context.Context, _ *mcp.CallToolRequest, in *AvailableActionsInput) (*mcp.CallToolResult, *AvailableActionsOutput, error) {
	out := &AvailableActionsOutput{}
	var id string
	useTemplates := false
	var filter []string
	maxCount := 0
	if in != nil {
		id = in.SessionID
		useTemplates = in.UseTemplates
		filter = in.Filter
		maxCount = in.MaxCount
	}

	err := s.registry.With(id, func(sess *session.Session) error {
		acts, err := actions.Advanced(sess.Engine(), useTemplates, filter, maxCount, s.logger)
		if err != nil {
			return err
		}
		out.Actions = acts
		out.Count = len(acts)
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
	}
	return nil, out, nil
}

type RecentHistoryInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by start_game"`
	Count     int    `json:"count,omitempty" jsonschema:"Number of recent turns to return (default 5, negative for full history)"`
}

type HistoryItem struct {
	Turn   int    `json:"turn"`
	Action string `json:"action"`
	Result string `json:"result"`
}

type RecentHistoryOutput struct {
	toolError
	RecentHistory []HistoryItem `json:"recent_history,omitempty" jsonschema:"Oldest first, newest last"`
	Showing       int           `json:"showing" jsonschema:"Entries returned"`
	TotalMoves    int           `json:"total_moves" jsonschema:"Total completed moves this session"`
}

// historyResultLimit clips long observations in history listings.
const historyResultLimit = 200

func (s *Server) handleRecentHistory(_ context.Context, _ *mcp.CallToolRequest, in *RecentHistoryInput) (*mcp.CallToolResult, *RecentHistoryOutput, error) {
	out := &RecentHistoryOutput{}
	count := 5
	var id string
	if in != nil {
		id = in.SessionID
		if in.Count != 0 {
			count = in.Count
		}
	}

	err := s.registry.With(id, func(sess *session.Session) error {
		total := sess.Moves()
		entries := sess.History(count)
		items := make([]HistoryItem, 0, len(entries))
		for i, e := range entries {
			result := e.Observation
			if runes := []rune(result); len(runes) > historyResultLimit {
				result = string(runes[:historyResultLimit]) + "..."
			}
			items = append(items, HistoryItem{
				Turn:   total - len(entries) + i + 1,
				Action: e.Action,
				Result: result,
			})
		}
		out.RecentHistory = items
		out.Showing = len(items)
		out.TotalMoves = total
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
	}
	return nil, out, nil
}

type VocabularyOutput struct {
	toolError
	vocab.Grouped
}

func (s *Server) handleVocabulary(_ context.Context, _ *mcp.CallToolRequest, in *SessionInput) (*mcp.CallToolResult, *VocabularyOutput, error) {
	out := &VocabularyOutput{}
	err := s.registry.With(sessionID(in), func(sess *session.Session) error {
		words, err := sess.Engine().Dictionary()
		if err != nil {
			return fmt.Errorf("fetching dictionary: %w", err)
		}
		out.Grouped = vocab.Group(words)
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
	}
	return nil, out, nil
}

type LookAroundInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by start_game"`
	Location  string `json:"location,omitempty" jsonschema:"Location name to inspect (current location when omitted)"`
}

type LookAroundOutput struct {
	toolError
	LocationName string            `json:"location_name,omitempty" jsonschema:"Resolved location name"`
	Objects      []worldmap.Object `json:"objects,omitempty" jsonschema:"Direct children of the location"`
	ObjectCount  int               `json:"object_count" jsonschema:"Number of objects listed"`
}

func (s *Server) handleLookAround(_ context.Context, _ *mcp.CallToolRequest, in *LookAroundInput) (*mcp.CallToolResult, *LookAroundOutput, error) {
	out := &LookAroundOutput{}
	var id, location string
	if in != nil {
		id = in.SessionID
		location = in.Location
	}

	err := s.registry.With(id, func(sess *session.Session) error {
		name, objs, err := worldmap.ObjectsInLocation(sess.Engine(), location)
		if err != nil {
			return err
		}
		out.LocationName = name
		out.Objects = objs
		out.ObjectCount = len(objs)
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
	}
	return nil, out, nil
}

type LocationGraphOutput struct {
	toolError
	Locations map[string]worldmap.Location `json:"locations,omitempty" jsonschema:"Location name to contents and exits"`
	Count     int                          `json:"count" jsonschema:"Number of locations found"`
}

func (s *Server) handleLocationGraph(_ context.Context, _ *mcp.CallToolRequest, in *SessionInput) (*mcp.CallToolResult, *LocationGraphOutput, error) {
	out := &LocationGraphOutput{}
	err := s.registry.With(sessionID(in), func(sess *session.Session) error {
		graph, err := worldmap.Graph(sess.Engine())
		if err != nil {
			return err
		}
		out.Locations = graph
		out.Count = len(graph)
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
	}
	return nil, out, nil
}

type ObjectDetailsInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by start_game"`
	Name      string `json:"name" jsonschema:"Object name to look up (case-insensitive)"`
}

type ObjectDetailsOutput struct {
	toolError
	Object *worldmap.Object `json:"object,omitempty" jsonschema:"Full object-tree record"`
}

func (s *Server) handleObjectDetails(_ context.Context, _ *mcp.CallToolRequest, in *ObjectDetailsInput) (*mcp.CallToolResult, *ObjectDetailsOutput, error) {
	out := &ObjectDetailsOutput{}
	var id, name string
	if in != nil {
		id = in.SessionID
		name = in.Name
	}

	err := s.registry.With(id, func(sess *session.Session) error {
		obj, err := worldmap.Details(sess.Engine(), name)
		if err != nil {
			return err
		}
		out.Object = &obj
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
	}
	return nil, out, nil
}

type ResetGameOutput struct {
	toolError
	stateOut
	Game    string `json:"game,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleResetGame(_ context.Context, _ *mcp.CallToolRequest, in *SessionInput) (*mcp.CallToolResult, *ResetGameOutput, error) {
	out := &ResetGameOutput{}
	err := s.registry.With(sessionID(in), func(sess *session.Session) error {
		snap, err := sess.Reset()
		if err != nil {
			return err
		}
		out.stateOut = stateFields(snap)
		out.Game = sess.GameName
		out.Message = "Game reset to beginning."
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
	}
	return nil, out, nil
}

type SaveStateOutput struct {
	toolError
	StateData string `json:"state_data,omitempty" jsonschema:"Opaque base64 state blob for load_state"`
	Message   string `json:"message,omitempty"`
}

func (s *Server) handleSaveState(_ context.Context, _ *mcp.CallToolRequest, in *SessionInput) (*mcp.CallToolResult, *SaveStateOutput, error) {
	out := &SaveStateOutput{}
	err := s.registry.With(sessionID(in), func(sess *session.Session) error {
		blob, err := sess.SaveState()
		if err != nil {
			return fmt.Errorf("%w: %v", engine.ErrBadState, err)
		}
		out.StateData = base64.StdEncoding.EncodeToString(blob)
		out.Message = "Game state saved."
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
	}
	return nil, out, nil
}

type LoadStateInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by start_game"`
	StateData string `json:"state_data" jsonschema:"Blob returned by save_state"`
}

type LoadStateOutput struct {
	toolError
	Loaded  bool   `json:"loaded" jsonschema:"Whether the state was restored"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleLoadState(_ context.Context, _ *mcp.CallToolRequest, in *LoadStateInput) (*mcp.CallToolResult, *LoadStateOutput, error) {
	out := &LoadStateOutput{}
	if in == nil || in.StateData == "" {
		out.toolError = s.fail(fmt.Errorf("%w: state_data is required", engine.ErrBadState))
		return nil, out, nil
	}
	blob, err := base64.StdEncoding.DecodeString(in.StateData)
	if err != nil {
		out.toolError = s.fail(fmt.Errorf("%w: %v", engine.ErrBadState, err))
		return nil, out, nil
	}

	err = s.registry.With(in.SessionID, func(sess *session.Session) error {
		return sess.RestoreState(blob)
	})
	if err != nil {
		out.toolError = s.fail(err)
		return nil, out, nil
	}
	out.Loaded = true
	out.Message = "Game state loaded."
	return nil, out, nil
}

type CheckpointInput struct {
	SessionID string `json:"session_id" jsonschema:"Session ID returned by start_game"`
	Name      string `json:"name" jsonschema:"Checkpoint name"`
}

type SaveCheckpointOutput struct {
	toolError
	Saved       bool     `json:"saved" jsonschema:"Whether the checkpoint was written"`
	Name        string   `json:"name,omitempty"`
	Checkpoints []string `json:"checkpoints,omitempty" jsonschema:"All checkpoint names saved for this game"`
}

func (s *Server) handleSaveCheckpoint(_ context.Context, _ *mcp.CallToolRequest, in *CheckpointInput) (*mcp.CallToolResult, *SaveCheckpointOutput, error) {
	out := &SaveCheckpointOutput{}
	id, name, te, ok := s.checkpointArgs(in)
	if !ok {
		out.toolError = te
		return nil, out, nil
	}

	err := s.registry.With(id, func(sess *session.Session) error {
		blob, err := sess.SaveState()
		if err != nil {
			return fmt.Errorf("%w: %v", engine.ErrBadState, err)
		}
		if err := s.checkpoints.Save(sess.GameName, name, blob); err != nil {
			return err
		}
		names, err := s.checkpoints.List(sess.GameName)
		if err != nil {
			return err
		}
		out.Checkpoints = names
		return nil
	})
	if err != nil {
		out.toolError = s.fail(err)
		return nil, out, nil
	}
	out.Saved = true
	out.Name = name
	return nil, out, nil
}

type LoadCheckpointOutput struct {
	toolError
	Loaded bool   `json:"loaded" jsonschema:"Whether the checkpoint was restored"`
	Name   string `json:"name,omitempty"`
}

func (s *Server) handleLoadCheckpoint(_ context.Context, _ *mcp.CallToolRequest, in *CheckpointInput) (*mcp.CallToolResult, *LoadCheckpointOutput, error) {
	out := &LoadCheckpointOutput{}
	id, name, te, ok := s.checkpointArgs(in)
	if !ok {
		out.toolError = te
		return nil, out, nil
	}

	err := s.registry.With(id, func(sess *session.Session) error {
		blob, err := s.checkpoints.Load(sess.GameName, name)
		if err != nil {
			return err
		}
		return sess.RestoreState(blob)
	})
	if err != nil {
		out.toolError = s.fail(err)
		return nil, out, nil
	}
	out.Loaded = true
	out.Name = name
	return nil, out, nil
}

func (s *Server) checkpointArgs(in *CheckpointInput) (id, name string, te toolError, ok bool) {
	if s.checkpoints == nil {
		return "", "", toolError{
			Error: "checkpoint store disabled",
			Hint:  "Start the server with --checkpoint-db, or use save_state/load_state.",
		}, false
	}
	if in == nil || strings.TrimSpace(in.Name) == "" {
		return "", "", toolError{
			Error: "checkpoint name is required",
			Hint:  "Pass a short name, e.g. 'before-troll'.",
		}, false
	}
	return in.SessionID, strings.TrimSpace(in.Name), toolError{}, true
}

type EndGameOutput struct {
	toolError
	Closed      bool   `json:"closed" jsonschema:"Whether a session was closed"`
	Message     string `json:"message,omitempty"`
	FinalScore  int    `json:"final_score" jsonschema:"Score at session end"`
	MaxScore    int    `json:"max_score"`
	TotalMoves  int    `json:"total_moves"`
	Performance string `json:"performance,omitempty" jsonschema:"Completion percentage, or N/A when the game reports no maximum"`
}

func (s *Server) handleEndGame(_ context.Context, _ *mcp.CallToolRequest, in *SessionInput) (*mcp.CallToolResult, *EndGameOutput, error) {
	out := &EndGameOutput{}
	id := sessionID(in)

	var game string
	err := s.registry.With(id, func(sess *session.Session) error {
		game = sess.GameName
		if snap := sess.Current(); snap != nil {
			out.FinalScore = snap.Score
			out.MaxScore = snap.MaxScore
			out.TotalMoves = snap.Moves
		}
		return nil
	})
	switch {
	case errors.Is(err, session.ErrNotFound):
		out.Message = "Session not found (may have already been closed)."
		return nil, out, nil
	case err != nil:
		out.toolError = s.fail(err)
		return nil, out, nil
	}

	if out.MaxScore > 0 {
		out.Performance = fmt.Sprintf("%d%%", int(float64(out.FinalScore)/float64(out.MaxScore)*100+0.5))
	} else {
		out.Performance = "N/A"
	}
	out.Closed = s.registry.Remove(id)
	out.Message = fmt.Sprintf("Session ended: %s", game)
	return nil, out, nil
}

func sessionID(in *SessionInput) string {
	if in == nil {
		return ""
	}
	return in.SessionID
}
