package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/solatis/alkatest/internal/packs"
)

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "Manage packs in the pack store",
}

var packsImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Store pack files, replacing packs of the same name",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPacksImport,
}

var packsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored packs in load order",
	RunE:  runPacksList,
}

var packsExportCmd = &cobra.Command{
	Use:   "export <name> <dir>",
	Short: "Write a stored pack back to a file",
	Args:  cobra.ExactArgs(2),
	RunE:  runPacksExport,
}

var packsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a stored pack",
	Args:  cobra.ExactArgs(1),
	RunE:  runPacksDelete,
}

var packsCompressCmd = &cobra.Command{
	Use:   "compress <file>...",
	Short: "Write a zstd-compressed copy of each pack file next to it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPacksCompress,
}

func init() {
	rootCmd.AddCommand(packsCmd)
	packsCmd.AddCommand(packsImportCmd, packsListCmd, packsExportCmd, packsDeleteCmd, packsCompressCmd)
	packsListCmd.Flags().Bool("json", false, "print the list as JSON")
}

func runPacksImport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	store, database, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	for _, file := range args {
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		info, err := store.Put(filepath.Base(file), raw)
		if err != nil {
			return err
		}
		logger.Info("pack stored", "name", info.Name, "pack_id", info.PackID, "digest", info.Digest)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.Name, info.Digest)
	}
	return nil
}

func runPacksList(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	store, database, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	list, err := store.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	for _, info := range list {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", info.Name, info.PackID, info.Digest, info.CreatedAt)
	}
	return nil
}

func runPacksExport(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	store, database, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	row, err := store.Raw(args[0])
	if err != nil {
		return err
	}
	path := filepath.Join(args[1], row.Name)
	if err := os.WriteFile(path, row.Document, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runPacksDelete(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	store, database, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := store.Delete(args[0]); err != nil {
		return err
	}
	logger.Info("pack deleted", "name", args[0])
	return nil
}

func runPacksCompress(cmd *cobra.Command, args []string) error {
	for _, file := range args {
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if _, err := packs.Load(filepath.Base(file), raw); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := packs.Compress(&buf, bytes.NewReader(raw)); err != nil {
			return fmt.Errorf("failed to compress %s: %w", file, err)
		}
		dst := file + ".zst"
		if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d -> %d bytes\n", dst, len(raw), buf.Len())
	}
	return nil
}
