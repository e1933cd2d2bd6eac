// Esp32aq queries an ESP32 air quality sensor from the command line.
//
// It connects to the device, fetches one set of readings and prints them.
// The default plain output is stable for scripts; --format styled and
// --format json are also available. 'esp32aq watch' polls continuously.
//
// Usage:
//
//	esp32aq <host> [flags]
//	esp32aq watch <host> [flags]
//
// See 'esp32aq --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/muurk/esp32aq/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a specific process exit code through cobra
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func run(args []string, stdout, stderr io.Writer) int {
	defer logging.Sync()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
