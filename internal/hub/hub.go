package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/esp32aq/internal/coordinator"
	"github.com/muurk/esp32aq/internal/device"
	"github.com/muurk/esp32aq/internal/logging"
	"github.com/muurk/esp32aq/internal/scheduler"
)

var (
	// ErrAlreadyRegistered is returned when a device with the same chip ID is
	// already owned by the hub
	ErrAlreadyRegistered = errors.New("device already registered")

	// ErrNotFound is returned for an unknown chip ID
	ErrNotFound = errors.New("device not found")
)

// Scheduler drives periodic refreshes. *scheduler.Scheduler implements it.
type Scheduler interface {
	Add(key string, interval time.Duration, fn scheduler.JobFunc) error
	Remove(key string) bool
}

// ClientFactory creates the device client for a host
type ClientFactory func(host string) coordinator.DataSource

// DeviceConfig describes one device to set up
type DeviceConfig struct {
	Host     string
	Name     string        // optional display name
	Interval time.Duration // refresh interval; scheduler default when zero
}

// Entry is one device owned by the hub
type Entry struct {
	ChipID      string
	Name        string
	Interval    time.Duration
	Info        device.DeviceInfo
	Coordinator *coordinator.Coordinator
}

// Hub owns the coordinators of all configured devices, keyed by chip ID.
// Coordinators are created by Setup and disposed by Remove or Close; nothing
// else keeps a reference to them.
type Hub struct {
	sched     Scheduler
	newClient ClientFactory
	onSetup   []func(*Entry)
	logger    *zap.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
}

// Option configures a Hub
type Option func(*Hub)

// WithClientFactory overrides how device clients are created
func WithClientFactory(f ClientFactory) Option {
	return func(h *Hub) {
		h.newClient = f
	}
}

// WithRequestTimeout sets the timeout of clients made by the default factory
func WithRequestTimeout(timeout time.Duration) Option {
	return func(h *Hub) {
		h.newClient = func(host string) coordinator.DataSource {
			return device.NewClient(host,
				device.WithTimeout(timeout),
				device.WithLogger(logging.Named("client")),
			)
		}
	}
}

// WithSetupHook registers fn to run for every new entry after its first
// refresh and before it is scheduled. Presentation adapters use it to attach
// listeners.
func WithSetupHook(fn func(*Entry)) Option {
	return func(h *Hub) {
		h.onSetup = append(h.onSetup, fn)
	}
}

// New creates an empty hub that registers refreshes with sched
func New(sched Scheduler, opts ...Option) *Hub {
	h := &Hub{
		sched: sched,
		newClient: func(host string) coordinator.DataSource {
			return device.NewClient(host, device.WithLogger(logging.Named("client")))
		},
		logger:  logging.Named("hub"),
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Setup creates a coordinator for cfg.Host and runs its first refresh
// synchronously. If that refresh fails, nothing is registered and the error
// is returned. On success the coordinator is owned by the hub under the
// device's chip ID and scheduled for periodic refresh.
func (h *Hub) Setup(ctx context.Context, cfg DeviceConfig) (*Entry, error) {
	client := h.newClient(cfg.Host)
	coord := coordinator.New(client)

	if err := coord.FirstRefresh(ctx); err != nil {
		coord.Close()
		return nil, fmt.Errorf("setup %s: %w", cfg.Host, err)
	}

	info, err := coord.DeviceInfo()
	if err != nil {
		coord.Close()
		return nil, fmt.Errorf("setup %s: %w", cfg.Host, err)
	}

	entry := &Entry{
		ChipID:      info.ChipID,
		Name:        cfg.Name,
		Interval:    cfg.Interval,
		Info:        info,
		Coordinator: coord,
	}
	if entry.Name == "" {
		entry.Name = info.ChipID
	}

	h.mu.Lock()
	if existing, ok := h.entries[info.ChipID]; ok {
		h.mu.Unlock()
		coord.Close()
		return nil, fmt.Errorf("%w: %s (host %s)", ErrAlreadyRegistered, info.ChipID, existing.Coordinator.Host())
	}
	h.entries[info.ChipID] = entry
	h.mu.Unlock()

	for _, fn := range h.onSetup {
		fn(entry)
	}

	err = h.sched.Add(info.ChipID, cfg.Interval, func(ctx context.Context) error {
		_, err := coord.Refresh(ctx)
		return err
	})
	if err != nil {
		h.mu.Lock()
		delete(h.entries, info.ChipID)
		h.mu.Unlock()
		coord.Close()
		return nil, fmt.Errorf("schedule %s: %w", info.ChipID, err)
	}

	h.logger.Info("Device set up",
		zap.String("chip_id", info.ChipID),
		zap.String("host", cfg.Host),
		zap.String("mac", info.MACAddress),
	)
	return entry, nil
}

// Get returns the entry for chipID
func (h *Hub) Get(chipID string) (*Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, ok := h.entries[chipID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, chipID)
	}
	return entry, nil
}

// List returns all entries sorted by chip ID
func (h *Hub) List() []*Entry {
	h.mu.RLock()
	entries := make([]*Entry, 0, len(h.entries))
	for _, e := range h.entries {
		entries = append(entries, e)
	}
	h.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ChipID < entries[j].ChipID
	})
	return entries
}

// Remove unschedules and disposes the coordinator for chipID
func (h *Hub) Remove(chipID string) error {
	h.mu.Lock()
	entry, ok := h.entries[chipID]
	if ok {
		delete(h.entries, chipID)
	}
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, chipID)
	}

	h.sched.Remove(chipID)
	entry.Coordinator.Close()

	h.logger.Info("Device removed", zap.String("chip_id", chipID))
	return nil
}

// Close removes every device
func (h *Hub) Close() {
	for _, e := range h.List() {
		_ = h.Remove(e.ChipID)
	}
}
