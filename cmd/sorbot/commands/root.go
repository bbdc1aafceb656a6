// Package commands implements the sorbot CLI commands using cobra.
package commands

import (
	"github.com/akcware/sorbot/pkg/sorbot/bot"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the CLI root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sorbot",
		Short: "Sorbot - WhatsApp AI assistant",
		Long: `Sorbot is a command-driven WhatsApp assistant. It answers chat
messages through an LLM, transcribes and replies to voice notes,
describes and generates images, and delivers scheduled reminders.

Examples:
  sorbot serve
  sorbot auth set OPENAI_API_KEY
  sorbot prompt show
  sorbot history 905551234567@s.whatsapp.net`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newAuthCmd(),
		newPromptCmd(),
		newHistoryCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// resolveConfig loads the configuration from the --config flag or the
// standard locations.
func resolveConfig(cmd *cobra.Command) (bot.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	if configPath == "" {
		configPath = bot.FindConfigFile()
	}
	return bot.LoadConfig(configPath)
}
