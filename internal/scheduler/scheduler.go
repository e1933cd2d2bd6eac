package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/esp32aq/internal/logging"
)

// DefaultInterval is the refresh interval used when a job is added with a
// non-positive interval.
const DefaultInterval = 60 * time.Second

var (
	// ErrDuplicateJob is returned by Add when the key is already scheduled
	ErrDuplicateJob = errors.New("job already scheduled")
	// ErrStopped is returned by Add after Stop
	ErrStopped = errors.New("scheduler stopped")
)

// JobFunc is one periodic unit of work, typically a coordinator refresh.
type JobFunc func(ctx context.Context) error

// job is one scheduled function with its own ticker goroutine
type job struct {
	key      string
	interval time.Duration
	fn       JobFunc
	cancel   context.CancelFunc
	done     chan struct{}
}

// Scheduler calls registered jobs on fixed intervals.
//
// Each job runs on its own goroutine, so a slow device never delays another
// one. A job never overlaps itself: a tick that fires while the previous run
// is still in flight is skipped. Jobs are not run on Add; callers that need
// an immediate run do it themselves before adding the job.
//
// Jobs can be added and removed while the scheduler runs. All methods are
// safe for concurrent use.
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    map[string]*job
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New creates a stopped scheduler
func New() *Scheduler {
	return &Scheduler{
		logger: logging.Named("scheduler"),
		jobs:   make(map[string]*job),
	}
}

// Start launches every registered job. Jobs added later start immediately.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; if Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, j := range s.jobs {
		s.launch(j)
	}
}

// Stop cancels all jobs and waits for in-flight runs to return.
// Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Add schedules fn under key every interval. A non-positive interval uses
// DefaultInterval.
func (s *Scheduler) Add(key string, interval time.Duration, fn JobFunc) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if _, exists := s.jobs[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, key)
	}

	j := &job{key: key, interval: interval, fn: fn}
	s.jobs[key] = j
	if s.started {
		s.launch(j)
	}

	s.logger.Debug("Job added", zap.String("key", key), zap.Duration("interval", interval))
	return nil
}

// Remove unschedules key and waits for its in-flight run, if any, to return.
// It reports whether the key was scheduled.
func (s *Scheduler) Remove(key string) bool {
	s.mu.Lock()
	j, ok := s.jobs[key]
	if ok {
		delete(s.jobs, key)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if j.cancel != nil {
		j.cancel()
		<-j.done
	}

	s.logger.Debug("Job removed", zap.String("key", key))
	return true
}

// Keys returns the scheduled job keys
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.jobs))
	for k := range s.jobs {
		keys = append(keys, k)
	}
	return keys
}

// launch starts the ticker goroutine of j. s.mu must be held.
func (s *Scheduler) launch(j *job) {
	ctx, cancel := context.WithCancel(s.ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(j.done)
		defer cancel()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Runs are synchronous on this goroutine, so ticks that fire
				// during a run are coalesced by the ticker and never overlap.
				s.run(ctx, j)
			}
		}
	}()
}

// run calls the job with panic recovery. A panicking job is logged with a
// correlation ID and keeps its schedule.
func (s *Scheduler) run(ctx context.Context, j *job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Job panic",
				zap.String("key", j.key),
				zap.String("correlation_id", uuid.NewString()),
				zap.String("panic", fmt.Sprintf("%v", r)),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	if err := j.fn(ctx); err != nil {
		s.logger.Debug("Job returned error", zap.String("key", j.key), zap.Error(err))
	}
}
