package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPOptions configures the streamable HTTP transport.
type HTTPOptions struct {
	Addr         string
	Path         string
	Origins      []string
	Token        string
	JSONResponse bool
	Stateless    bool
}

// RunStdio serves the tool surface over stdin/stdout until ctx is done.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.MCP().Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the tool surface over streamable HTTP, plus plain
// /health and /status endpoints for liveness probes. Browser requests
// from origins outside opts.Origins are rejected; an empty opts.Token
// disables bearer authentication.
func (s *Server) RunHTTP(opts HTTPOptions) error {
	mcpServer := s.MCP()

	path := opts.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return mcpServer
	}, &mcp.StreamableHTTPOptions{
		Stateless:                  opts.Stateless,
		JSONResponse:               opts.JSONResponse,
		Logger:                     s.logger,
		DisableLocalhostProtection: false,
	})

	originSet := map[string]struct{}{}
	for _, origin := range opts.Origins {
		originSet[origin] = struct{}{}
	}

	guarded := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAllowedOrigin(r, originSet) {
			http.Error(w, "Forbidden origin", http.StatusForbidden)
			return
		}
		if opts.Token != "" && r.Header.Get("Authorization") != "Bearer "+opts.Token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})

	mux := http.NewServeMux()
	mux.Handle(path, guarded)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"status": "ok", "version": Version})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		s.registry.SweepExpired()
		writeJSON(w, map[string]any{
			"status":          "ok",
			"version":         Version,
			"active_sessions": s.registry.Count(),
			"games_dir":       s.library.Dir(),
		})
	})

	s.logger.Info("serving MCP over HTTP", "addr", opts.Addr, "path", path)
	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: mux,
	}
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func isAllowedOrigin(r *http.Request, allowed map[string]struct{}) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, ok := allowed[origin]
	return ok
}
