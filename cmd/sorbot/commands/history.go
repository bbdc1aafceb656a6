package commands

import (
	"fmt"

	"github.com/akcware/sorbot/pkg/sorbot/history"

	"github.com/spf13/cobra"
)

// newHistoryCmd creates the `sorbot history` command that dumps the stored
// conversation for one conversant.
func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <jid>",
		Short: "Print the stored conversation for a conversant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			store, err := history.Open(cfg.HistoryPath, nil)
			if err != nil {
				return fmt.Errorf("opening history store: %w", err)
			}
			defer store.Close()

			turns, err := store.List(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("listing history: %w", err)
			}
			if len(turns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no stored conversation)")
				return nil
			}

			for _, turn := range turns {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s: %s\n", turn.ID, turn.Role, turn.Content.Text)
			}
			return nil
		},
	}
}
