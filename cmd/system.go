package cmd

import (
	"fmt"

	"github.com/marcus/pollexa/internal/config"
	"github.com/marcus/pollexa/internal/output"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:     "info",
	Aliases: []string{"stats"},
	Short:   "Show the feed source and vote totals",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		_, path := openSource(cfg)
		if path == "" {
			path = "(bundled)"
		}

		engine, snap, err := loadFeed(commandContext(cmd), cfg)
		if err != nil {
			output.Error("load feed: %v", err)
			return err
		}
		defer engine.Close()

		votes, authors := 0, map[string]bool{}
		for _, r := range snap.Rows {
			votes += r.TotalVoteCount
			authors[r.AuthorName] = true
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(map[string]interface{}{
				"source":  cfg.Source,
				"path":    path,
				"config":  config.Path(getBaseDir()),
				"polls":   len(snap.Rows),
				"votes":   votes,
				"authors": len(authors),
			})
		}

		fmt.Printf("Source:  %s %s\n", cfg.Source, path)
		fmt.Printf("Config:  %s\n", config.Path(getBaseDir()))
		if snap.CurrentUser != nil {
			fmt.Printf("User:    %s\n", snap.CurrentUser.Username)
		}
		fmt.Printf("Polls:   %s\n", output.FormatCount(len(snap.Rows)))
		fmt.Printf("Votes:   %s\n", output.FormatCount(votes))
		fmt.Printf("Authors: %d\n", len(authors))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version",
	GroupID: "system",
	Run: func(cmd *cobra.Command, args []string) {
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Print(version)
			return
		}
		fmt.Printf("pollexa version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(versionCmd)

	infoCmd.Flags().Bool("json", false, "JSON output")
	versionCmd.Flags().Bool("short", false, "Print only the version")
}
