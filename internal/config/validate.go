package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	ipPattern   = regexp.MustCompile(`^(([0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])\.){3}([0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])$`)
	hostPattern = regexp.MustCompile(`^(([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9\-]*[a-zA-Z0-9])\.)*([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9\-]*[A-Za-z0-9])$`)
)

// ValidateHost checks that host is an IPv4 address or hostname, optionally
// followed by ":port".
func ValidateHost(host string) error {
	if host == "" {
		return errors.New("host is required")
	}

	name := host
	if strings.Contains(host, ":") {
		h, port, err := net.SplitHostPort(host)
		if err != nil {
			return fmt.Errorf("invalid host %q: %w", host, err)
		}
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("invalid host %q: bad port %q", host, port)
		}
		name = h
	}

	if !ipPattern.MatchString(name) && !hostPattern.MatchString(name) {
		return fmt.Errorf("invalid host %q", host)
	}
	return nil
}

// Validate checks the configuration and returns all problems found, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected 1)", c.Version))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive"))
	}
	if c.MQTT != nil && c.MQTT.Broker == "" {
		errs = append(errs, fmt.Errorf("mqtt.broker is required when mqtt is configured"))
	}

	seen := make(map[string]int, len(c.Devices))
	for i, d := range c.Devices {
		if err := ValidateHost(d.Host); err != nil {
			errs = append(errs, fmt.Errorf("devices[%d]: %w", i, err))
			continue
		}
		key := strings.ToLower(d.Host)
		if prev, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("devices[%d]: host %s already configured at devices[%d]", i, d.Host, prev))
		}
		seen[key] = i
		if d.PollInterval < 0 {
			errs = append(errs, fmt.Errorf("devices[%d]: poll_interval must be positive", i))
		}
	}

	return errors.Join(errs...)
}
