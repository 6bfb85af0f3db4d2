package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	clock *FakeClock
	fired []time.Time
}

func (r *recorder) fire() {
	r.fired = append(r.fired, r.clock.Now())
}

func newTestScheduler(opts ...Option) (*Scheduler, *FakeClock, *recorder) {
	clock := NewFakeClock(time.Unix(0, 0))
	rec := &recorder{clock: clock}
	s := New(rec.fire, append([]Option{WithClock(clock)}, opts...)...)
	return s, clock, rec
}

func TestDebounceBurstCompilesOnce(t *testing.T) {
	s, clock, rec := newTestScheduler()
	start := clock.Now()

	// Five edits, each 300ms apart.
	for i := 0; i < 5; i++ {
		require.True(t, s.Notify())
		clock.Advance(300 * time.Millisecond)
	}
	last := start.Add(4 * 300 * time.Millisecond)

	clock.Advance(1199 * time.Millisecond)
	assert.Empty(t, rec.fired, "must not fire before 1500ms of quiet")

	clock.Advance(time.Millisecond)
	require.Len(t, rec.fired, 1)
	assert.Equal(t, last.Add(DefaultDelay), rec.fired[0])
	assert.False(t, s.Pending())

	stats := s.Stats()
	assert.Equal(t, uint64(5), stats.Scheduled)
	assert.Equal(t, uint64(4), stats.Superseded)
	assert.Equal(t, uint64(1), stats.Fired)
}

func TestDebounceSeparatedEditsCompileTwice(t *testing.T) {
	s, clock, rec := newTestScheduler()

	s.Notify()
	clock.Advance(1600 * time.Millisecond)
	s.Notify()
	clock.Advance(1600 * time.Millisecond)

	assert.Len(t, rec.fired, 2)
}

func TestAtMostOnePendingTimer(t *testing.T) {
	s, clock, _ := newTestScheduler()

	for i := 0; i < 10; i++ {
		s.Notify()
	}

	assert.Equal(t, 1, clock.Pending())
	assert.True(t, s.Pending())
}

func TestManualModeNeverSchedules(t *testing.T) {
	s, clock, rec := newTestScheduler(WithMode(Manual))

	for i := 0; i < 10; i++ {
		assert.False(t, s.Notify())
	}
	clock.Advance(time.Minute)

	assert.Empty(t, rec.fired)
	assert.Equal(t, 0, clock.Pending())
}

func TestModeChangeKeepsPendingTimer(t *testing.T) {
	s, clock, rec := newTestScheduler()

	s.Notify()
	s.SetMode(Manual)
	assert.True(t, s.Pending())

	clock.Advance(DefaultDelay)
	assert.Len(t, rec.fired, 1, "pending compile fires after switching to manual")

	s.Notify()
	clock.Advance(DefaultDelay)
	assert.Len(t, rec.fired, 1, "edits in manual mode do not schedule")

	s.SetMode(Automatic)
	s.Notify()
	clock.Advance(DefaultDelay)
	assert.Len(t, rec.fired, 2)
}

func TestCancelAndStop(t *testing.T) {
	s, clock, rec := newTestScheduler()

	s.Notify()
	assert.True(t, s.Cancel())
	assert.False(t, s.Cancel())
	clock.Advance(time.Minute)
	assert.Empty(t, rec.fired)

	s.Notify()
	s.Stop()
	assert.False(t, s.Notify())
	clock.Advance(time.Minute)
	assert.Empty(t, rec.fired)
}

func TestStaleTimerIgnored(t *testing.T) {
	var calls atomic.Int32
	var captured []func()
	clock := clockFunc(func(d time.Duration, f func()) Timer {
		captured = append(captured, f)
		return stubTimer{}
	})
	s := New(func() { calls.Add(1) }, WithClock(clock))

	s.Notify()
	s.Notify()
	require.Len(t, captured, 2)

	// The first timer's Stop lost the race and its callback still runs.
	captured[0]()
	assert.Equal(t, int32(0), calls.Load())
	captured[1]()
	assert.Equal(t, int32(1), calls.Load())
}

func TestCustomDelay(t *testing.T) {
	s, clock, rec := newTestScheduler(WithDelay(200 * time.Millisecond))
	assert.Equal(t, 200*time.Millisecond, s.Delay())

	s.Notify()
	clock.Advance(200 * time.Millisecond)
	assert.Len(t, rec.fired, 1)
}

func TestRealClock(t *testing.T) {
	done := make(chan struct{})
	s := New(func() { close(done) }, WithDelay(10*time.Millisecond))

	s.Notify()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced compile never fired")
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("manual")
	require.NoError(t, err)
	assert.Equal(t, Manual, m)

	_, err = ParseMode("sometimes")
	assert.Error(t, err)
}

type clockFunc func(time.Duration, func()) Timer

func (f clockFunc) AfterFunc(d time.Duration, fn func()) Timer { return f(d, fn) }

type stubTimer struct{}

func (stubTimer) Stop() bool { return false }
