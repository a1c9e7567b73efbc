// Package cmd wires the CLI: serve runs the MCP server, play runs a local
// terminal session, games lists the library. Every flag can also come from
// a GRUEBOX_ environment variable or a .gruebox config file.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gruebox/internal/checkpoint"
	"gruebox/internal/engine"
	"gruebox/internal/frotz"
	"gruebox/internal/gamedir"
	"gruebox/internal/server"
	"gruebox/internal/session"
)

var rootCmd = &cobra.Command{
	Use:          "gruebox",
	Short:        "Z-machine text adventures as MCP tools",
	Long:         `gruebox runs classic Z-machine interactive fiction behind a session registry and exposes it as MCP tools, so agents can explore games one stateless call at a time.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("games-dir", "games", "Directory of Z-machine story files (.z3/.z4/.z5/.z8)")
	pf.StringSlice("engine-cmd", []string{"jericho-worker"}, "Interpreter worker command and arguments; the story path is appended")
	pf.Duration("engine-timeout", 30*time.Second, "Deadline for a single interpreter call")
	pf.Duration("session-timeout", session.DefaultTimeout, "Idle time before a session expires")
	pf.String("checkpoint-db", "", "Bolt database path for named checkpoints (empty disables them)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")

	for flagName, key := range map[string]string{
		"games-dir":       "games_dir",
		"engine-cmd":      "engine_cmd",
		"engine-timeout":  "engine_timeout",
		"session-timeout": "session_timeout",
		"checkpoint-db":   "checkpoint_db",
		"log-level":       "log_level",
	} {
		must(viper.BindPFlag(key, pf.Lookup(flagName)))
	}
}

func initConfig() {
	viper.SetConfigName(".gruebox")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetEnvPrefix("GRUEBOX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(viper.GetString("log_level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func newLibrary() *gamedir.Library {
	return gamedir.New(viper.GetString("games_dir"))
}

func newFactory(library *gamedir.Library, logger *slog.Logger) engine.Factory {
	return frotz.NewFactory(
		viper.GetStringSlice("engine_cmd"),
		library.Lookup,
		viper.GetDuration("engine_timeout"),
		logger,
	)
}

// newServer assembles the full stack. The returned cleanup closes the
// checkpoint store when one was opened.
func newServer(logger *slog.Logger) (*server.Server, func(), error) {
	library := newLibrary()
	registry := session.NewRegistry(newFactory(library, logger), viper.GetDuration("session_timeout"), logger)

	var store *checkpoint.Store
	cleanup := func() {}
	if path := viper.GetString("checkpoint_db"); path != "" {
		st, err := checkpoint.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening checkpoint db: %w", err)
		}
		store = st
		cleanup = func() { _ = st.Close() }
	}

	return server.New(registry, library, store, logger), cleanup, nil
}
