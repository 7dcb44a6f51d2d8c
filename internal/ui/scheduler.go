package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/DaanHessen/measures-tui/internal/engine"
)

// timerFiredMsg is delivered when a scheduled callback comes due.
type timerFiredMsg struct{ id uint64 }

// cmdScheduler is an engine.Scheduler whose timers surface as tea commands.
type cmdScheduler interface {
	engine.Scheduler
	// fire runs the callback for id if it is still armed.
	fire(id uint64) bool
	// drain returns the commands for timers armed since the last drain.
	drain() tea.Cmd
}

// teaScheduler arms callbacks as tea.Tick commands so they run inside
// Update, never concurrently with the model.
type teaScheduler struct {
	next uint64
	fns  map[uint64]func()
	out  []tea.Cmd
}

func newTeaScheduler() *teaScheduler { return &teaScheduler{fns: map[uint64]func(){}} }

func (s *teaScheduler) AfterFunc(d time.Duration, fn func()) engine.Timer {
	if d < 0 {
		d = 0
	}
	s.next++
	id := s.next
	s.fns[id] = fn
	s.out = append(s.out, tea.Tick(d, func(time.Time) tea.Msg { return timerFiredMsg{id: id} }))
	return &teaTimer{s: s, id: id}
}

func (s *teaScheduler) fire(id uint64) bool {
	fn, ok := s.fns[id]
	if !ok {
		return false
	}
	delete(s.fns, id)
	fn()
	return true
}

func (s *teaScheduler) drain() tea.Cmd {
	if len(s.out) == 0 {
		return nil
	}
	cmds := s.out
	s.out = nil
	return tea.Batch(cmds...)
}

type teaTimer struct {
	s  *teaScheduler
	id uint64
}

// Stop disarms the callback. The tick still arrives and is ignored.
func (t *teaTimer) Stop() bool {
	if _, ok := t.s.fns[t.id]; !ok {
		return false
	}
	delete(t.s.fns, t.id)
	return true
}
