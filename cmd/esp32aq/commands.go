package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/esp32aq/internal/advertise"
	"github.com/muurk/esp32aq/internal/device"
	"github.com/muurk/esp32aq/internal/logging"
	"github.com/muurk/esp32aq/internal/ui"
	"github.com/muurk/esp32aq/internal/version"
)

// deviceClient is the part of *device.Client the commands use
type deviceClient interface {
	Connected() bool
	Connect(ctx context.Context) error
	DeviceInfo() (device.DeviceInfo, error)
	Readings(ctx context.Context) (device.Readings, error)
	Close()
}

// newClient is replaced in tests
var newClient = func(host string, opts ...device.Option) deviceClient {
	return device.NewClient(host, opts...)
}

type queryOptions struct {
	timeout  time.Duration
	info     bool
	format   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "esp32aq <host>",
		Short: "Query an ESP32 air quality sensor",
		Long: `Query an ESP32 air quality sensor over HTTP.

Connects to the device, fetches its current readings and prints them.
A device that cannot be reached is reported on stdout and still exits 0,
so the command can run unattended from cron or shell loops.`,
		Example: `  # Print readings
  esp32aq 192.168.1.40

  # Include chip information, styled for the terminal
  esp32aq sensor.local --info --format styled

  # JSON for scripts
  esp32aq 192.168.1.40 --format json --timeout 3s`,
		Version:       version.Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Initialize(opts.logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "please provide device hostname/ip")
				return &exitError{code: 2}
			}
			return runQuery(cmd, args[0], opts)
		},
	}

	// Disable automatic completion command generation
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); logs go to stderr")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", device.DefaultTimeout, "Total timeout for each device request")
	cmd.Flags().BoolVar(&opts.info, "info", false, "Also print chip information")
	cmd.Flags().StringVar(&opts.format, "format", string(ui.FormatPlain), "Output format (plain, styled, json)")

	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newBridgesCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func runQuery(cmd *cobra.Command, host string, opts *queryOptions) error {
	format, err := ui.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client := newClient(host, device.WithTimeout(opts.timeout), device.WithLogger(logging.Named("client")))
	defer client.Close()

	report := query(ctx, client, opts.info)
	report.Host = host
	return report.Write(cmd.OutOrStdout(), format, ui.GetTerminalWidth())
}

// query connects and reads once. Any failure ends up in Report.Err.
func query(ctx context.Context, client deviceClient, withInfo bool) ui.Report {
	if err := client.Connect(ctx); err != nil {
		return ui.Report{Err: err}
	}

	readings, err := client.Readings(ctx)
	if err != nil {
		return ui.Report{Err: err}
	}

	report := ui.Report{Readings: &readings}
	if withInfo {
		if info, err := client.DeviceInfo(); err == nil {
			report.Info = &info
		}
	}
	return report
}

func newWatchCmd(opts *queryOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <host>",
		Short: "Poll a sensor and show live readings",
		Long: `Poll a sensor on an interval and redraw its readings in place.

Failed polls keep the last good readings on screen. Press r to poll
immediately and q to quit.`,
		Example: `  esp32aq watch 192.168.1.40
  esp32aq watch sensor.local --interval 5s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			if !ui.IsTerminal(os.Stdout.Fd()) {
				return errors.New("watch needs an interactive terminal; use 'esp32aq <host>' in scripts")
			}

			host := args[0]
			client := newClient(host, device.WithTimeout(opts.timeout), device.WithLogger(logging.Named("client")))
			defer client.Close()

			fetch := func(ctx context.Context) (device.Readings, error) {
				if !client.Connected() {
					if err := client.Connect(ctx); err != nil {
						return device.Readings{}, err
					}
				}
				return client.Readings(ctx)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return ui.RunWatch(ctx, host, interval, fetch)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Time between polls")
	return cmd
}

func newBridgesCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "bridges",
		Short: "List esp32aq bridges announced on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			bridges, err := advertise.Browse(ctx)
			if err != nil {
				return fmt.Errorf("browse failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(bridges) == 0 {
				fmt.Fprintln(out, "No bridges found.")
				fmt.Fprintln(out, "Bridges announce themselves only when http.advertise is enabled.")
				return nil
			}
			for _, b := range bridges {
				fmt.Fprintf(out, "%s  %s  version %s\n", b.Instance, b.BaseURL(), b.Version())
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "scan-timeout", advertise.DefaultBrowseTimeout, "How long to listen for announcements")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "esp32aq %s\n", version.Full())
		},
	}
}
