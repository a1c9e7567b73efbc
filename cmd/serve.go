package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gruebox/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long:  `Serves the game tools over streamable HTTP, or over stdio with --stdio for clients that spawn the server as a subprocess.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()
		srv, cleanup, err := newServer(logger)
		if err != nil {
			return err
		}
		defer cleanup()

		if viper.GetBool("stdio") {
			logger.Info("serving MCP over stdio")
			return srv.RunStdio(cmd.Context())
		}

		origins := viper.GetStringSlice("origins")
		if len(origins) == 0 {
			origins = []string{"http://localhost", "http://127.0.0.1"}
		}
		return srv.RunHTTP(server.HTTPOptions{
			Addr:         viper.GetString("addr"),
			Path:         viper.GetString("path"),
			Origins:      origins,
			Token:        viper.GetString("token"),
			JSONResponse: viper.GetBool("json_response"),
			Stateless:    viper.GetBool("stateless"),
		})
	},
}

func init() {
	f := serveCmd.Flags()
	f.Bool("stdio", false, "Serve over stdin/stdout instead of HTTP")
	f.String("addr", "127.0.0.1:8765", "HTTP listen address")
	f.String("path", "/mcp", "HTTP endpoint path")
	f.String("token", "", "Bearer token required on HTTP requests (optional)")
	f.StringSlice("origins", nil, "Allowed Origin headers for HTTP requests")
	f.Bool("json-response", false, "Force JSON responses instead of SSE")
	f.Bool("stateless", false, "Run the HTTP transport stateless (no transport sessions)")

	for flagName, key := range map[string]string{
		"stdio":         "stdio",
		"addr":          "addr",
		"path":          "path",
		"token":         "token",
		"origins":       "origins",
		"json-response": "json_response",
		"stateless":     "stateless",
	} {
		must(viper.BindPFlag(key, f.Lookup(flagName)))
	}

	rootCmd.AddCommand(serveCmd)
}
