package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/pollexa/internal/output"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <poll>",
	Aliases: []string{"view"},
	Short:   "Show a poll with its options",
	Long: `Show one poll. The argument is a poll id or part of its question;
the best match is shown.`,
	Example: `  pollexa show 3
  pollexa show "sneakers"`,
	GroupID: "feed",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		query := strings.Join(args, " ")

		cfg, err := currentConfig(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		engine, snap, err := loadFeed(commandContext(cmd), cfg)
		if err != nil {
			if jsonOutput {
				output.JSONError(output.ErrCodeSourceError, err.Error())
			} else {
				output.Error("load feed: %v", err)
			}
			return err
		}
		defer engine.Close()

		pos, err := resolvePoll(snap.Rows, query)
		if err != nil {
			if jsonOutput {
				output.JSONError(output.ErrCodeNotFound, err.Error())
			} else {
				output.Error("%v", err)
			}
			return err
		}
		row := snap.Rows[pos]

		if jsonOutput {
			return output.JSON(output.ToJSON(snap.Rows[pos : pos+1])[0])
		}

		renderMarkdown, _ := cmd.Flags().GetBool("render-markdown")
		if renderMarkdown || (output.IsTerminal() && !cmd.Flags().Changed("render-markdown")) {
			rendered, err := output.RenderMarkdown(output.PollMarkdown(row))
			if err == nil {
				fmt.Print(rendered)
				return nil
			}
			output.Warning("render markdown: %v", err)
		}

		fmt.Print(output.FormatRowLong(row))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("json", false, "JSON output")
	showCmd.Flags().BoolP("render-markdown", "m", false, "Render the poll as markdown (default on a terminal)")
}
