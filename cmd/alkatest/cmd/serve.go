package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solatis/alkatest/internal/core/config"
	"github.com/solatis/alkatest/internal/core/server"
	"github.com/solatis/alkatest/internal/packs"
	"github.com/solatis/alkatest/internal/runtime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the content runtime with a gRPC health endpoint",
	Long: `serve loads the configured packs, emits "tick" on every tick interval
and, for directory content with watching enabled, reloads after pack files
change. The gRPC health service reports SERVING while content is loaded.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Runtime.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Runtime.Port, _ = cmd.Flags().GetInt("port")
	}

	grpcServer := server.NewGRPCServer(cfg.Runtime, logger)

	opts := []runtime.Option{
		runtime.OnReload(func(reg *packs.Registry, report *packs.Report, err error) {
			grpcServer.SetServing(reg != nil)
		}),
	}
	if cfg.Content.Source == config.SourceDir && cfg.Runtime.Watch {
		opts = append(opts, runtime.WithWatchDir(cfg.Content.Dir))
	}
	host, report, release, err := newHost(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer release()
	for _, d := range report.Diagnostics {
		logger.Warn("entity rejected", "pack", d.Pack, "category", d.Category, "id", d.ID, "error", d.Err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting alkatest runtime", "version", Version, "addr", cfg.Runtime.Addr(), "source", cfg.Content.Source)
	errChan := make(chan error, 2)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()
	go func() {
		errChan <- host.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		cancel()
		grpcServer.Shutdown(context.Background())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		cancel()
		return grpcServer.Shutdown(context.Background())
	}
}
