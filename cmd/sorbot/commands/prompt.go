package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/akcware/sorbot/pkg/sorbot/promptcfg"

	"github.com/spf13/cobra"
)

// newPromptCmd creates the `sorbot prompt` command group for inspecting and
// updating the system prompt.
func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Show or update the system prompt",
		Long: `The system prompt lives in an append-only file; every update is
appended with a timestamp and the last entry wins. Earlier versions
stay in the file as history.

Examples:
  sorbot prompt show
  sorbot prompt set "You are a helpful assistant."
  cat prompt.txt | sorbot prompt set -`,
	}

	cmd.AddCommand(newPromptShowCmd(), newPromptSetCmd())
	return cmd
}

func newPromptShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active system prompt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			prompt := promptcfg.New(cfg.PromptPath).Load()
			if prompt == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "(no system prompt configured)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		},
	}
}

func newPromptSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <prompt>",
		Short: "Append a new system prompt version",
		Long:  "Append a new prompt version. Pass - to read the prompt from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			text := args[0]
			if text == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading prompt from stdin: %w", err)
				}
				text = string(data)
			}
			text = strings.TrimSpace(text)
			if text == "" {
				return fmt.Errorf("empty prompt, nothing saved")
			}

			file := promptcfg.New(cfg.PromptPath)
			if err := file.Save(text); err != nil {
				return fmt.Errorf("saving prompt: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Prompt updated (%s).\n", file.Path())
			return nil
		},
	}
}
