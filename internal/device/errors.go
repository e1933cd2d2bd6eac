package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// Cause is a coarse hint about why a device call failed. It only feeds
// troubleshooting output; callers treat every DeviceError alike.
type Cause int

const (
	// CauseUnknown covers everything not classified below
	CauseUnknown Cause = iota
	// CauseTimeout indicates the request exceeded the client timeout
	CauseTimeout
	// CauseConnectionRefused indicates nothing listened on the device port
	CauseConnectionRefused
	// CauseDNS indicates the device hostname could not be resolved
	CauseDNS
	// CauseUnreachable indicates a host or network unreachable error
	CauseUnreachable
	// CauseStatus indicates the device answered with a non-2xx status
	CauseStatus
	// CauseParse indicates the response body was not the expected JSON
	CauseParse
	// CauseNotConnected indicates device info was requested before Connect
	CauseNotConnected
)

// String returns a human-readable name for the cause
func (c Cause) String() string {
	switch c {
	case CauseTimeout:
		return "timeout"
	case CauseConnectionRefused:
		return "connection refused"
	case CauseDNS:
		return "dns"
	case CauseUnreachable:
		return "unreachable"
	case CauseStatus:
		return "http status"
	case CauseParse:
		return "parse"
	case CauseNotConnected:
		return "not connected"
	case CauseUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Cause(%d)", c)
	}
}

// DeviceError is the single error kind returned by Client. It covers
// transport failures, unexpected status codes and malformed responses.
type DeviceError struct {
	Host       string // Device host the call was made against
	Op         string // Operation, e.g. "GET /readings"
	Message    string // Human-readable error message
	StatusCode int    // HTTP status code (if the device answered)
	Cause      Cause  // Troubleshooting hint
	Err        error  // Underlying error (if any)
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// IsDeviceError reports whether err is or wraps a *DeviceError
func IsDeviceError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr)
}

// classifyTransportError maps a transport error to a Cause and a short message.
func classifyTransportError(err error) (Cause, string) {
	var timeoutErr interface{ Timeout() bool }
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &timeoutErr) && timeoutErr.Timeout()) {
		return CauseTimeout, "request timed out"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CauseDNS, fmt.Sprintf("cannot resolve %s", dnsErr.Name)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return CauseConnectionRefused, "device refused connection"
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH), errors.Is(opErr.Err, syscall.ENETUNREACH):
			return CauseUnreachable, "device unreachable"
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return classifyTransportError(urlErr.Err)
	}

	return CauseUnknown, "request failed"
}

// newTransportError wraps a transport-level failure
func newTransportError(host, op string, err error) *DeviceError {
	cause, msg := classifyTransportError(err)
	return &DeviceError{Host: host, Op: op, Message: msg, Cause: cause, Err: err}
}

// newStatusError reports a non-2xx response
func newStatusError(host, op string, status int, body []byte) *DeviceError {
	msg := fmt.Sprintf("unexpected status %d", status)
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		if len(trimmed) > 128 {
			trimmed = trimmed[:128] + "..."
		}
		msg += " (" + trimmed + ")"
	}
	return &DeviceError{Host: host, Op: op, Message: msg, StatusCode: status, Cause: CauseStatus}
}

// newParseError reports a malformed response body
func newParseError(host, op string, err error) *DeviceError {
	return &DeviceError{Host: host, Op: op, Message: "invalid response", Cause: CauseParse, Err: err}
}

// TroubleshootingHint returns user-facing advice for err, or nil when err
// carries no useful hint.
func TroubleshootingHint(err error) []string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return nil
	}

	switch devErr.Cause {
	case CauseTimeout:
		return []string{
			"The device did not respond in time.",
			"Check that the sensor is powered on and joined to WiFi.",
			"Try a longer --timeout on slow networks.",
		}
	case CauseConnectionRefused:
		return []string{
			"The device refused the connection.",
			"The sensor firmware may still be booting; retry in a few seconds.",
			"Verify the port if the firmware listens on a non-default one.",
		}
	case CauseDNS:
		return []string{
			"Could not resolve the device hostname.",
			"Use the IP address instead, or check your local DNS.",
		}
	case CauseUnreachable:
		return []string{
			"The device is not reachable on the network.",
			"Verify the address and that you are on the same network.",
			"Try: ping " + devErr.Host,
		}
	case CauseStatus:
		if devErr.StatusCode >= 500 {
			return []string{
				fmt.Sprintf("The device returned HTTP %d.", devErr.StatusCode),
				"The sensor may still be warming up; readings are unavailable until it settles.",
			}
		}
		return []string{fmt.Sprintf("The device returned HTTP %d. Is this an ESP32 air quality sensor?", devErr.StatusCode)}
	case CauseParse:
		return []string{
			"The device response could not be parsed.",
			"Check that the firmware exposes / and /readings as JSON.",
		}
	case CauseNotConnected:
		return []string{"Connect to the device before requesting its info."}
	default:
		return nil
	}
}
