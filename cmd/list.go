package cmd

import (
	"fmt"

	"github.com/marcus/pollexa/internal/output"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List polls in feed order",
	GroupID: "feed",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		engine, snap, err := loadFeed(commandContext(cmd), cfg)
		if err != nil {
			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				output.JSONError(output.ErrCodeSourceError, err.Error())
			} else {
				output.Error("load feed: %v", err)
			}
			return err
		}
		defer engine.Close()

		rows := snap.Rows
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && limit < len(rows) {
			rows = rows[:limit]
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(output.ToJSON(rows))
		}

		if len(rows) == 0 {
			fmt.Println("No polls")
			return nil
		}
		for i, row := range rows {
			fmt.Println(output.FormatRowShort(i, row))
		}
		if len(rows) < len(snap.Rows) {
			fmt.Printf("\n%d of %d polls\n", len(rows), len(snap.Rows))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("json", false, "JSON output")
	listCmd.Flags().IntP("limit", "n", 0, "Show at most n polls")
}
