package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List the games in the library",
	RunE: func(cmd *cobra.Command, _ []string) error {
		library := newLibrary()
		names, err := library.Names()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Printf("No games found in %s\n", library.Dir())
			return nil
		}

		fmt.Printf("Games in %s:\n", library.Dir())
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}

		if picks := library.Recommended(); picks != nil {
			categories := make([]string, 0, len(picks))
			for c := range picks {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			fmt.Println("\nRecommended:")
			for _, c := range categories {
				fmt.Printf("  %s:", c)
				for _, name := range picks[c] {
					fmt.Printf(" %s", name)
				}
				fmt.Println()
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gamesCmd)
}
