package scheduler

import (
	"fmt"
	"sync"
	"time"
)

// DefaultDelay is the idle period after the last edit before an automatic
// compile fires.
const DefaultDelay = 1500 * time.Millisecond

// Mode selects whether edits schedule compiles.
type Mode string

const (
	Automatic Mode = "automatic"
	Manual    Mode = "manual"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Automatic, Manual:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Stats counts scheduler activity.
type Stats struct {
	Scheduled  uint64 `json:"scheduled"`
	Superseded uint64 `json:"superseded"`
	Fired      uint64 `json:"fired"`
}

// Scheduler debounces edits into compiles. At most one compile is pending;
// a new edit cancels and replaces it.
type Scheduler struct {
	mu      sync.Mutex
	mode    Mode
	delay   time.Duration
	clock   Clock
	fire    func()
	pending Timer
	seq     uint64
	stopped bool
	stats   Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithClock injects the timer source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithMode sets the initial mode (automatic by default).
func WithMode(m Mode) Option {
	return func(s *Scheduler) { s.mode = m }
}

// New creates a scheduler calling fire when a debounced compile is due.
// fire runs on the clock's goroutine without the scheduler lock held.
func New(fire func(), opts ...Option) *Scheduler {
	s := &Scheduler{
		mode:  Automatic,
		delay: DefaultDelay,
		clock: RealClock{},
		fire:  fire,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify records a mutation. In automatic mode it replaces any pending
// compile with one due after the delay; it reports whether one was armed.
func (s *Scheduler) Notify() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.mode != Automatic {
		return false
	}

	if s.cancelLocked() {
		s.stats.Superseded++
	}
	s.seq++
	token := s.seq
	s.pending = s.clock.AfterFunc(s.delay, func() { s.due(token) })
	s.stats.Scheduled++
	return true
}

func (s *Scheduler) due(token uint64) {
	s.mu.Lock()
	if s.stopped || token != s.seq || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.stats.Fired++
	s.mu.Unlock()

	s.fire()
}

// Cancel drops the pending compile, if any, and reports whether there was one.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked()
}

func (s *Scheduler) cancelLocked() bool {
	if s.pending == nil {
		return false
	}
	s.pending.Stop()
	s.pending = nil
	s.seq++
	return true
}

// SetMode switches mode for subsequent edits. A compile that is already
// pending is left alone.
func (s *Scheduler) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// Mode returns the current mode.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Delay returns the debounce delay.
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// Pending reports whether a compile is scheduled.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Stats returns a copy of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Stop cancels the pending compile and ignores further edits.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.stopped = true
}
