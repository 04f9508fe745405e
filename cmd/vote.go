package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/marcus/pollexa/internal/feed"
	"github.com/marcus/pollexa/internal/output"
	"github.com/spf13/cobra"
)

var errNoOption = errors.New("no option given")

var voteCmd = &cobra.Command{
	Use:   "vote <poll> [option]",
	Short: "Vote on a poll",
	Long: `Cast a vote and print the updated poll. The poll is an id or part of
its question. The option is its id or its 1-based number; on a terminal
it can be left out to pick one interactively.

Votes are not saved, every run starts from the dataset.`,
	Example: `  pollexa vote 3 A
  pollexa vote sneakers 2`,
	GroupID: "feed",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		cfg, err := currentConfig(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		ctx := commandContext(cmd)
		engine, snap, err := loadFeed(ctx, cfg)
		if err != nil {
			output.Error("load feed: %v", err)
			return err
		}
		defer engine.Close()

		pos, err := resolvePoll(snap.Rows, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		row := snap.Rows[pos]

		var optionArg string
		if len(args) > 1 {
			optionArg = args[1]
		}
		optionID, err := resolveOption(row, optionArg)
		if errors.Is(err, errNoOption) && output.IsTerminal() && !jsonOutput {
			optionID, err = pickOption(row)
		}
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if err := engine.VoteByID(ctx, row.ID, optionID); err != nil {
			output.Error("vote: %v", err)
			return err
		}

		after, err := engine.Snapshot(ctx)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		updated := after.Rows[pos]

		if jsonOutput {
			return output.JSON(output.ToJSON(after.Rows[pos : pos+1])[0])
		}

		output.Success("VOTED %s on %s", optionID, row.ID)
		fmt.Print(output.FormatRowLong(updated))
		return nil
	},
}

// resolveOption maps an option id or 1-based number to an option id
func resolveOption(row feed.Row, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errNoOption
	}
	for _, o := range row.Options {
		if o.ID == arg {
			return o.ID, nil
		}
	}
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(row.Options) {
		return row.Options[n-1].ID, nil
	}
	for _, o := range row.Options {
		if strings.EqualFold(o.ID, arg) {
			return o.ID, nil
		}
	}
	return "", fmt.Errorf("poll %s has no option %q", row.ID, arg)
}

// pickOption asks for an option interactively
func pickOption(row feed.Row) (string, error) {
	opts := make([]huh.Option[string], 0, len(row.Options))
	for i, o := range row.Options {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%d. %s (%s)", i+1, o.ID, output.FormatVotes(o.VotedCount)), o.ID))
	}

	var choice string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(row.Title).
			Options(opts...).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	return choice, nil
}

func init() {
	rootCmd.AddCommand(voteCmd)
	voteCmd.Flags().Bool("json", false, "JSON output")
}
