// Esp32aq-bridge polls ESP32 air quality sensors and republishes them.
//
// Every configured sensor gets a polling coordinator driven by a fixed
// interval scheduler. The latest readings are served over an HTTP API with
// a websocket stream and Prometheus metrics, and optionally mirrored to
// Home Assistant through MQTT discovery.
//
// Usage:
//
//	esp32aq-bridge serve [flags]
//	esp32aq-bridge config init|show|path
//
// See 'esp32aq-bridge --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/esp32aq/internal/logging"
	"github.com/muurk/esp32aq/internal/version"
)

func main() {
	err := newRootCmd().Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "esp32aq-bridge",
		Short: "ESP32 air quality bridge",
		Long: `A long running bridge for ESP32 air quality sensors.

Polls every sensor listed in the configuration file and exposes the
readings over HTTP, websocket, Prometheus and (optionally) MQTT.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Disable automatic completion command generation
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $ESP32AQ_CONFIG or the user config dir)")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newConfigCmd(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "esp32aq-bridge %s\n", version.Full())
		},
	})
	return cmd
}
