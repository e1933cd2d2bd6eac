package device

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the total timeout applied to every device request
	DefaultTimeout = 10 * time.Second

	infoPath     = "/"
	readingsPath = "/readings"
)

// Client talks to a single ESP32 air quality device over plain HTTP.
//
// The only state it keeps is whether Connect has succeeded and the device
// info fetched at that time. Readings are fetched fresh on every call and
// never retried.
type Client struct {
	host   string
	http   *resty.Client
	logger *zap.Logger

	// connectMu serializes Connect so concurrent callers do a single fetch
	connectMu sync.Mutex

	// mu protects connected and info
	mu        sync.RWMutex
	connected bool
	info      DeviceInfo
}

// Option configures a Client
type Option func(*Client)

// WithTimeout overrides DefaultTimeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

// WithHTTPClient replaces the underlying *http.Client. Its Timeout is
// overwritten with DefaultTimeout unless WithTimeout follows.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc).SetTimeout(DefaultTimeout)
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the device at host ("192.168.1.40" or
// "sensor.local:8080").
func NewClient(host string, opts ...Option) *Client {
	c := &Client{
		host:   host,
		http:   resty.New().SetTimeout(DefaultTimeout),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.SetLogger(c.logger.Sugar())
	c.http.SetHeader("Accept", "application/json")
	return c
}

// Host returns the configured device host
func (c *Client) Host() string {
	return c.host
}

// Connected reports whether Connect has succeeded
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Connect fetches the device info and marks the client connected.
// It is a no-op once connected. On failure the client stays disconnected.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.Connected() {
		return nil
	}

	body, err := c.get(ctx, infoPath)
	if err != nil {
		return err
	}

	info, err := ParseDeviceInfo(body)
	if err != nil {
		return newParseError(c.host, "GET "+infoPath, err)
	}

	c.mu.Lock()
	c.info = info
	c.connected = true
	c.mu.Unlock()

	c.logger.Debug("Connected to device",
		zap.String("host", c.host),
		zap.String("chip_id", info.ChipID),
		zap.String("mac", info.MACAddress),
	)
	return nil
}

// DeviceInfo returns the info cached by the last successful Connect
func (c *Client) DeviceInfo() (DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return DeviceInfo{}, &DeviceError{
			Host:    c.host,
			Message: "not yet connected to device",
			Cause:   CauseNotConnected,
		}
	}
	return c.info, nil
}

// Readings fetches the current measurements. It does not require Connect and
// does not change the connection state.
func (c *Client) Readings(ctx context.Context) (Readings, error) {
	body, err := c.get(ctx, readingsPath)
	if err != nil {
		return Readings{}, err
	}

	readings, err := ParseReadings(body)
	if err != nil {
		return Readings{}, newParseError(c.host, "GET "+readingsPath, err)
	}
	return readings, nil
}

// Close releases idle connections held by the client
func (c *Client) Close() {
	if c == nil || c.http == nil {
		return
	}
	c.http.GetClient().CloseIdleConnections()
}

func (c *Client) url(path string) string {
	return "http://" + c.host + path
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	op := "GET " + path
	start := time.Now()

	resp, err := c.http.R().SetContext(ctx).Get(c.url(path))
	if err != nil {
		c.logger.Debug("Device request failed",
			zap.String("host", c.host),
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, newTransportError(c.host, op, err)
	}

	c.logger.Debug("Device request completed",
		zap.String("host", c.host),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if !resp.IsSuccess() {
		return nil, newStatusError(c.host, op, resp.StatusCode(), resp.Body())
	}
	return resp.Body(), nil
}
