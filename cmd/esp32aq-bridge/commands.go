package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/esp32aq/internal/config"
	"github.com/muurk/esp32aq/internal/logging"
	"github.com/muurk/esp32aq/internal/version"
)

func newServeCmd(configPath *string) *cobra.Command {
	var logLevel, logFormat string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge",
		Long: `Load the configuration and poll every configured sensor.

Each sensor is set up with one synchronous refresh. Sensors that cannot be
reached at startup are retried every poll interval until they answer.`,
		Example: `  # Use the default config location
  esp32aq-bridge serve

  # Explicit config with debug logging
  esp32aq-bridge serve --config ./bridge.yaml --log-level debug

  # JSON logs for a log shipper
  esp32aq-bridge serve --log-format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// ESP32AQ_LOG_LEVEL wins over the flag default, not over an explicit flag
			level := logLevel
			if !cmd.Flags().Changed("log-level") && os.Getenv(logging.LogLevelEnvVar) != "" {
				level = ""
			}
			if err := logging.Configure(logging.Options{Level: level, Encoding: logFormat}); err != nil {
				return err
			}

			path, err := config.ResolvePath(*configPath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if errors.Is(err, config.ErrNotExist) {
				return fmt.Errorf("%w\nRun 'esp32aq-bridge config init' to create one", err)
			}
			if err != nil {
				return err
			}

			logging.Info("Starting bridge",
				zap.String("version", version.Full()),
				zap.String("config", path),
				zap.Int("devices", len(cfg.Devices)),
			)

			b, err := newBridge(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return b.run(ctx)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", logging.EncodingConsole, "Log encoding (console, json)")
	return cmd
}

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the bridge configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ResolvePath(*configPath)
			if err != nil {
				return err
			}
			if force {
				err = config.Example().Save(path)
			} else {
				err = config.CreateDefaultConfig(path)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, defaults applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ResolvePath(*configPath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ResolvePath(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	return cmd
}
