package engine

import (
	"sort"
	"time"
)

// Timer is a pending callback armed through a Scheduler.
type Timer interface {
	// Stop cancels the callback. It reports false when the callback already
	// ran or was stopped before.
	Stop() bool
}

// Scheduler arms one-shot callbacks. Implementations must run callbacks on
// the owner's event loop, never concurrently with other owner code.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// ManualScheduler is a Scheduler driven by explicit Advance calls. Callbacks
// run in deadline order, ties in arming order.
type ManualScheduler struct {
	now     time.Duration
	seq     uint64
	pending []*manualTimer
}

type manualTimer struct {
	s    *ManualScheduler
	at   time.Duration
	seq  uint64
	fn   func()
	done bool
}

func (t *manualTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	t.s.remove(t)
	return true
}

// NewManualScheduler returns a scheduler whose clock starts at zero.
func NewManualScheduler() *ManualScheduler { return &ManualScheduler{} }

func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	s.seq++
	t := &manualTimer{s: s, at: s.now + d, seq: s.seq, fn: fn}
	s.pending = append(s.pending, t)
	return t
}

// Now is the elapsed virtual time.
func (s *ManualScheduler) Now() time.Duration { return s.now }

// Pending is the number of armed callbacks.
func (s *ManualScheduler) Pending() int { return len(s.pending) }

// Advance moves the clock forward by d, running every callback that comes
// due, including callbacks armed by callbacks within the window.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		next := s.next(target)
		if next == nil {
			break
		}
		s.now = next.at
		next.done = true
		s.remove(next)
		next.fn()
	}
	s.now = target
}

// AdvanceTo moves the clock to the absolute virtual time t.
func (s *ManualScheduler) AdvanceTo(t time.Duration) {
	if t > s.now {
		s.Advance(t - s.now)
	}
}

func (s *ManualScheduler) next(limit time.Duration) *manualTimer {
	if len(s.pending) == 0 {
		return nil
	}
	sort.SliceStable(s.pending, func(i, j int) bool {
		if s.pending[i].at != s.pending[j].at {
			return s.pending[i].at < s.pending[j].at
		}
		return s.pending[i].seq < s.pending[j].seq
	})
	if s.pending[0].at > limit {
		return nil
	}
	return s.pending[0]
}

func (s *ManualScheduler) remove(t *manualTimer) {
	for i, p := range s.pending {
		if p == t {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// timerSet tracks the timers one component armed so they can be cancelled
// together.
type timerSet map[string]Timer

func (ts timerSet) arm(name string, sched Scheduler, d time.Duration, fn func()) {
	if old, ok := ts[name]; ok {
		old.Stop()
	}
	ts[name] = sched.AfterFunc(d, fn)
}

func (ts timerSet) stop(name string) {
	if t, ok := ts[name]; ok {
		t.Stop()
		delete(ts, name)
	}
}

func (ts timerSet) stopAll() {
	for name, t := range ts {
		t.Stop()
		delete(ts, name)
	}
}
