package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/alkatest/internal/packs"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configured packs and report rejected entities",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "fail when any entity was rejected")
	validateCmd.Flags().Bool("json", false, "print the result as JSON")
}

type validateResult struct {
	LoadID      string        `json:"loadId"`
	Digest      string        `json:"digest"`
	Summary     packs.Summary `json:"summary"`
	Diagnostics []string      `json:"diagnostics"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	load, release, err := packLoader(cfg)
	if err != nil {
		return err
	}
	defer release()

	list, err := load()
	if err != nil {
		return fmt.Errorf("failed to read packs: %w", err)
	}
	reg, report := packs.Process(list, packs.WithLogger(logger))

	result := validateResult{
		LoadID:      string(reg.LoadID),
		Digest:      reg.Digest,
		Summary:     reg.Summary(),
		Diagnostics: []string{},
	}
	for _, d := range report.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, d.Error())
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		s := result.Summary
		fmt.Fprintf(out, "%d packs, digest %s\n", len(list), result.Digest)
		fmt.Fprintf(out, "items %d, nodes %d, types %d, objects %d, listeners %d\n",
			s.Items, s.Nodes, s.Types, s.Objects, s.Listeners)
		for _, d := range result.Diagnostics {
			fmt.Fprintln(out, "rejected:", d)
		}
	}

	if strict, _ := cmd.Flags().GetBool("strict"); strict && report.Len() > 0 {
		return fmt.Errorf("%d entities rejected", report.Len())
	}
	return nil
}
