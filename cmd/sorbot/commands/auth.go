package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/akcware/sorbot/pkg/sorbot/bot"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// newAuthCmd creates the `sorbot auth` command group for managing API keys
// in the OS keyring.
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API keys in the OS keyring",
		Long: `Store, check and remove API keys. Keys are kept in the OS keyring
and picked up automatically when the daemon starts; environment
variables take precedence.

Examples:
  sorbot auth set OPENAI_API_KEY
  sorbot auth set ELEVENLABS_API_KEY
  sorbot auth status
  sorbot auth unset OPENAI_API_KEY`,
	}

	cmd.AddCommand(newAuthSetCmd(), newAuthUnsetCmd(), newAuthStatusCmd())
	return cmd
}

func newAuthSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store an API key (prompted, not echoed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			fmt.Fprintf(cmd.OutOrStdout(), "Enter value for %s: ", name)
			value, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("reading secret: %w", err)
			}
			trimmed := strings.TrimSpace(string(value))
			if trimmed == "" {
				return fmt.Errorf("empty value, nothing stored")
			}

			if err := bot.StoreKeyring(name, trimmed); err != nil {
				return fmt.Errorf("storing %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stored in the OS keyring.\n", name)
			return nil
		},
	}
}

func newAuthUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <name>",
		Short: "Remove an API key from the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := bot.DeleteKeyring(name); err != nil {
				return fmt.Errorf("removing %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed from the OS keyring.\n", name)
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which API keys are configured",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range []string{bot.SecretOpenAIKey, bot.SecretElevenLabsKey} {
				state := "not set"
				if os.Getenv(name) != "" {
					state = "set (environment)"
				} else if bot.GetKeyring(name) != "" {
					state = "set (keyring)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", name, state)
			}
			return nil
		},
	}
}
