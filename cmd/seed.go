package cmd

import (
	"github.com/marcus/pollexa/internal/config"
	"github.com/marcus/pollexa/internal/db"
	"github.com/marcus/pollexa/internal/output"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import the JSON dataset into the SQLite database",
	Long: `Read the JSON dataset (bundled, or --dataset) and replace the contents of
the SQLite database at db_path with it. Use --use to switch the feed to
the sqlite source afterwards.`,
	GroupID: "data",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		ctx := commandContext(cmd)

		polls, err := datasetSource(cfg).FetchAll(ctx)
		if err != nil {
			output.Error("read dataset: %v", err)
			return err
		}

		path := resolvePath(cfg.DBPath)
		database, err := db.Initialize(path)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		if err := database.ImportPolls(ctx, polls); err != nil {
			output.Error("import: %v", err)
			return err
		}
		n, err := database.CountPolls(ctx)
		if err != nil {
			output.Error("count: %v", err)
			return err
		}
		output.Success("SEEDED %d polls into %s", n, path)

		if use, _ := cmd.Flags().GetBool("use"); use {
			if err := config.Update(getBaseDir(), func(c *config.Config) error {
				c.Source = config.SourceSQLite
				return nil
			}); err != nil {
				output.Error("save config: %v", err)
				return err
			}
			output.Info("source set to %s", config.SourceSQLite)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Bool("use", false, "Set source=sqlite in the config after seeding")
}
