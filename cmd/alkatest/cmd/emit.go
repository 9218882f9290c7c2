package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/alkatest/internal/blocks"
	"github.com/solatis/alkatest/internal/board"
	"github.com/solatis/alkatest/internal/packs"
)

var emitCmd = &cobra.Command{
	Use:   "emit <event> [payload-json]",
	Short: "Load the configured packs, emit one event and print the board",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runEmit,
}

func init() {
	rootCmd.AddCommand(emitCmd)
	emitCmd.Flags().Int("ticks", 0, "ticks to run after the event")
}

func runEmit(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	var payload any
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	host, _, release, err := newHost(cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	if err := host.Emit(args[0], payload); err != nil {
		return err
	}
	ticks, _ := cmd.Flags().GetInt("ticks")
	for i := 0; i < ticks; i++ {
		if err := host.Tick(); err != nil {
			return err
		}
	}

	var out []byte
	host.Inspect(func(_ *packs.Registry, b *board.Board, _ *blocks.Engine) {
		out, err = json.MarshalIndent(b.Nodes(), "", "  ")
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
