package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muurk/esp32aq/internal/device"
	"github.com/muurk/esp32aq/internal/logging"
)

// DataSource is the device side of a coordinator. *device.Client implements it.
type DataSource interface {
	Host() string
	Connected() bool
	Connect(ctx context.Context) error
	DeviceInfo() (device.DeviceInfo, error)
	Readings(ctx context.Context) (device.Readings, error)
	Close()
}

// Snapshot is an immutable copy of the last good readings
type Snapshot struct {
	Readings  device.Readings `json:"readings"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Status summarizes the refresh history of a coordinator
type Status struct {
	Available           bool      // last refresh attempt succeeded
	LastAttempt         time.Time // zero before the first attempt
	LastSuccess         time.Time // zero before the first success
	LastError           error     // error of the last attempt, nil after a success
	ConsecutiveFailures int
}

// Coordinator owns one device client and its last-known-good readings.
//
// Refresh is meant to be driven by an external scheduler. Refreshes never
// overlap; Latest never blocks and never performs I/O.
type Coordinator struct {
	client DataSource
	now    func() time.Time

	// refreshMu is held for the duration of a refresh
	refreshMu sync.Mutex
	snapshot  atomic.Pointer[Snapshot]

	statusMu sync.RWMutex
	status   Status

	listenersMu sync.Mutex
	listeners   map[int]func()
	nextID      int
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates a coordinator for client. No I/O happens until the first refresh.
func New(client DataSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		client:    client,
		now:       time.Now,
		listeners: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the device host
func (c *Coordinator) Host() string {
	return c.client.Host()
}

// DeviceInfo returns the info cached by the client's last successful connect
func (c *Coordinator) DeviceInfo() (device.DeviceInfo, error) {
	return c.client.DeviceInfo()
}

// FirstRefresh performs the startup refresh. Unlike scheduled refreshes its
// failure is meant to abort setup of the device.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	_, err := c.Refresh(ctx)
	return err
}

// Refresh connects to the device if needed and fetches fresh readings.
//
// On success the cached snapshot is replaced in one step. On failure the
// cache is left untouched and an *UpdateFailedError is returned. A call made
// while another refresh is running returns ErrRefreshInProgress without
// touching the device.
func (c *Coordinator) Refresh(ctx context.Context) (Snapshot, error) {
	if !c.refreshMu.TryLock() {
		return Snapshot{}, ErrRefreshInProgress
	}
	defer c.refreshMu.Unlock()

	start := c.now()
	snap, err := c.fetch(ctx)
	finished := c.now()

	c.statusMu.Lock()
	c.status.LastAttempt = finished
	if err != nil {
		c.status.Available = false
		c.status.LastError = err
		c.status.ConsecutiveFailures++
	} else {
		c.snapshot.Store(&snap)
		c.status.Available = true
		c.status.LastError = nil
		c.status.LastSuccess = snap.UpdatedAt
		c.status.ConsecutiveFailures = 0
	}
	c.statusMu.Unlock()

	logging.LogRefresh(c.client.Host(), finished.Sub(start), err)
	c.notify()

	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c *Coordinator) fetch(ctx context.Context) (Snapshot, error) {
	if !c.client.Connected() {
		if err := c.client.Connect(ctx); err != nil {
			return Snapshot{}, &UpdateFailedError{Host: c.client.Host(), Err: err}
		}
	}

	readings, err := c.client.Readings(ctx)
	if err != nil {
		return Snapshot{}, &UpdateFailedError{Host: c.client.Host(), Err: err}
	}

	return Snapshot{Readings: readings, UpdatedAt: c.now()}, nil
}

// Latest returns the last good snapshot, or ErrNotAvailable before the first
// successful refresh. Stale data is returned as is after later failures.
func (c *Coordinator) Latest() (Snapshot, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return Snapshot{}, ErrNotAvailable
	}
	return *snap, nil
}

// Status returns a copy of the refresh status
func (c *Coordinator) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Available reports whether the last refresh succeeded
func (c *Coordinator) Available() bool {
	return c.Status().Available
}

// AddListener registers fn to be called after every refresh attempt, success
// or failure. Listeners run on the refreshing goroutine and must not block.
// The returned function unregisters fn.
func (c *Coordinator) AddListener(fn func()) (remove func()) {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Coordinator) notify() {
	c.listenersMu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Close releases the device client
func (c *Coordinator) Close() {
	c.client.Close()
}
