package cmd

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/pollexa/internal/feed"
	"github.com/marcus/pollexa/internal/output"
	"github.com/marcus/pollexa/internal/repository"
	"github.com/marcus/pollexa/internal/tui/feedview"
	"github.com/spf13/cobra"
)

var feedCmd = &cobra.Command{
	Use:     "feed",
	Aliases: []string{"discover"},
	Short:   "Browse and vote on the poll feed",
	Long: `Launch the interactive poll feed.

Key bindings:
  ↑/↓ or j/k     Select a poll
  1-9            Vote for option N on the selected poll
  a/b            Vote for the first/second option
  r              Refresh the feed
  n              Load more polls
  /              Filter by question
  ?              Toggle help
  q              Quit

Votes last for the session only.`,
	GroupID:     "feed",
	Annotations: map[string]string{annotationTUI: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		watch := cfg.Watch
		if cmd.Flags().Changed("watch") {
			watch, _ = cmd.Flags().GetBool("watch")
		}

		src, path := openSource(cfg)
		engine := newEngine(cfg, repository.WithLatency(src, cfg.Latency.Duration))
		defer engine.Close()

		ctx, cancel := context.WithCancel(commandContext(cmd))
		defer cancel()

		if watch {
			if path == "" {
				output.Warning("--watch needs a dataset file or the sqlite source, the bundled dataset never changes")
			} else {
				go func() {
					if err := feed.Watch(ctx, engine, path, feed.DefaultWatchDebounce); err != nil {
						slog.Error("watch dataset", "path", path, "err", err)
					}
				}()
			}
		}

		p := tea.NewProgram(feedview.NewModel(ctx, engine), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running feed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.Flags().Bool("watch", false, "Refresh when the dataset file changes (default from config)")
}
