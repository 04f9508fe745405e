package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/pollexa/internal/config"
	"github.com/marcus/pollexa/internal/output"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage pollexa configuration",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]

		if !config.IsKey(key) {
			output.Error("unknown config key: %s", key)
			fmt.Println("Valid keys:", strings.Join(config.Keys(), ", "))
			return fmt.Errorf("unknown config key: %s", key)
		}

		err := config.Update(getBaseDir(), func(cfg *config.Config) error {
			return cfg.Set(key, val)
		})
		if err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("set %s = %s", key, val)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a config value",
	Long:  "Get the effective value of a config key, including environment and flag overrides.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		if !config.IsKey(key) {
			output.Error("unknown config key: %s", key)
			fmt.Println("Valid keys:", strings.Join(config.Keys(), ", "))
			return fmt.Errorf("unknown config key: %s", key)
		}

		cfg, err := currentConfig(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		val, err := cfg.Get(key)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Println(val)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"show"},
	Short:   "List all config values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(cfg)
		}

		for _, key := range config.Keys() {
			val, _ := cfg.Get(key)
			fmt.Printf("%-11s %s\n", key, val)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.Path(getBaseDir()))
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)

	configListCmd.Flags().Bool("json", false, "JSON output")
}
