package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/config"
	"github.com/garyjia/approval-workflow/internal/container"
	"github.com/garyjia/approval-workflow/pkg/utils"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "approval-server",
		Usage:   "Serve the leave and expense approval workflow",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "configs/config.yaml",
				Sources: cli.EnvVars("APPROVAL_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file loaded before the environment is read; skipped when missing",
				Value: ".env",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "approval-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	cfg, err := config.LoadWithEnvFile(command.String("config"), command.String("env-file"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting approval workflow service",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Int("approval_nodes", len(cfg.Workflow.Nodes)),
		zap.String("app_no_strategy", cfg.Workflow.AppNoStrategy))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Error("Failed to create container", zap.Error(err))
		return err
	}

	if err := c.Start(ctx); err != nil {
		logger.Error("Failed to start container", zap.Error(err))
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	// Blocks until a signal arrives or the listener fails
	if err := c.HTTPServer().Start(ctx); err != nil {
		logger.Error("HTTP server exited", zap.Error(err))
		return err
	}

	logger.Info("Server exited successfully")
	return nil
}
