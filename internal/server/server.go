// Package server exposes the session registry and its derived trackers as
// an MCP tool surface. One tool call is one logical operation; every
// response is a flat mapping and no call ever terminates the calling agent
// on error: failures come back as {error, hint} fields.
package server

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"gruebox/internal/checkpoint"
	"gruebox/internal/gamedir"
	"gruebox/internal/session"
)

// Version is reported to MCP clients during initialization.
const Version = "v1.0.0"

type Server struct {
	registry    *session.Registry
	library     *gamedir.Library
	checkpoints *checkpoint.Store // nil when the checkpoint store is disabled
	logger      *slog.Logger
}

func New(registry *session.Registry, library *gamedir.Library, checkpoints *checkpoint.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:    registry,
		library:     library,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

// MCP builds the tool server with every game tool registered.
func (s *Server) MCP() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "gruebox",
		Version: Version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_games",
		Description: "List available text adventure games, with curated picks when the library carries them.",
	}, s.handleListGames)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "start_game",
		Description: "Start a new game session for a named game and return the initial state plus a session_id for all further calls.",
	}, s.handleStartGame)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "action",
		Description: "Send one command to the game (e.g. 'open mailbox', 'go north') and return the resulting state, loop-detection flag, and newly crossed score milestones.",
	}, s.handleAction)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "current_state",
		Description: "Return the current game state without advancing the turn counter.",
	}, s.handleCurrentState)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "available_actions",
		Description: "Return candidate commands for the current state, optionally template-generated, keyword-filtered, and bounded.",
	}, s.handleAvailableActions)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "recent_history",
		Description: "Return recent action/observation pairs from this session, oldest first.",
	}, s.handleRecentHistory)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "game_vocabulary",
		Description: "Return every word the game's parser recognizes, grouped by part of speech.",
	}, s.handleVocabulary)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "look_around",
		Description: "Inspect the objects in a location via the engine's object tree (current location when none is named).",
	}, s.handleLookAround)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "location_graph",
		Description: "Return the full derived location graph: every room with its contained object names and known exits.",
	}, s.handleLocationGraph)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "object_details",
		Description: "Return the full object-tree record of a named object.",
	}, s.handleObjectDetails)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "reset_game",
		Description: "Restart the current session's game from the beginning, clearing milestones and history.",
	}, s.handleResetGame)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "save_state",
		Description: "Save the current engine state and return it as an opaque blob for later restoration.",
	}, s.handleSaveState)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "load_state",
		Description: "Restore a previously saved engine state blob into this session.",
	}, s.handleLoadState)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "save_checkpoint",
		Description: "Persist the current engine state under a name so it survives the session.",
	}, s.handleSaveCheckpoint)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "load_checkpoint",
		Description: "Restore a named checkpoint saved earlier for this game.",
	}, s.handleLoadCheckpoint)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "end_game",
		Description: "End a session, release its engine, and return a final performance summary.",
	}, s.handleEndGame)

	return srv
}
