package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlesng35/mediacache/internal/app"
	"github.com/charlesng35/mediacache/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "mediacache",
		Short:         "Pull-through media cache in front of the origin",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration directory or file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the eviction scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Run a single eviction pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCleanup(cmd.Context(), configPath, cmd.OutOrStdout())
		},
	})

	return root
}

func setup(configPath string) (*app.Config, *zap.Logger, error) {
	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := app.ConfigureLogging(cfg.Server.LogLevel, cfg.Server.LogFormat); err != nil {
		return nil, nil, fmt.Errorf("configure logging: %w", err)
	}
	return cfg, logger.WithModule("bootstrap"), nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync() // best effort

	stack, err := bootstrapRuntime(ctx, cfg, log, withScheduler())
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		shutdownCtx, cancel := shutdownContext(cfg.Server.ShutdownTimeout)
		defer cancel()
		stack.Shutdown(shutdownCtx, log)
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := shutdownContext(cfg.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	stack.Shutdown(shutdownCtx, log)
	if shutdownErr != nil && !errors.Is(shutdownErr, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", shutdownErr)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func runCleanup(ctx context.Context, configPath string, out io.Writer) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync() // best effort

	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stack.Shutdown(context.Background(), log)

	result, err := stack.Cleaner.Evict(ctx)
	fmt.Fprintf(out, "deleted=%d freed_bytes=%d\n", result.Deleted, result.FreedBytes)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfigFile(path)
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
