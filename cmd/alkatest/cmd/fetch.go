package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/alkatest/internal/packs"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <source> <dir>",
	Short: "Download a pack directory and check that it reads",
	Long: `fetch downloads source into dir with go-getter. Any go-getter address
works: a local path, an http(s) archive, git::, s3:: or gcs::.`,
	Args: cobra.ExactArgs(2),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	_, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	src, dst := args[0], args[1]

	if err := packs.Fetch(cmd.Context(), dst, src); err != nil {
		return err
	}
	list, err := packs.ReadDir(dst, nil)
	if err != nil {
		return fmt.Errorf("fetched content does not read: %w", err)
	}
	logger.Info("packs fetched", "source", src, "dir", dst, "packs", len(list), "digest", packs.Digest(list))
	for _, p := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Name, p.Digest)
	}
	return nil
}
