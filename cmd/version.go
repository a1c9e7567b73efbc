package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"gruebox/internal/server"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the application version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("gruebox %s (%s/%s)\n", server.Version, runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
