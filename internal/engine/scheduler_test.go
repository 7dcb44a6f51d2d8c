package engine

import (
	"reflect"
	"testing"
	"time"
)

func TestManualSchedulerOrder(t *testing.T) {
	s := NewManualScheduler()
	var got []string
	s.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	s.AfterFunc(10*time.Millisecond, func() {
		got = append(got, "a")
		s.AfterFunc(5*time.Millisecond, func() { got = append(got, "a2") })
	})
	s.AfterFunc(10*time.Millisecond, func() { got = append(got, "b") })
	stopped := s.AfterFunc(20*time.Millisecond, func() { got = append(got, "x") })
	if !stopped.Stop() || stopped.Stop() {
		t.Fatalf("Stop should succeed once")
	}
	s.Advance(30 * time.Millisecond)
	if !reflect.DeepEqual(got, []string{"a", "b", "a2", "c"}) {
		t.Fatalf("order = %v", got)
	}
	if s.Now() != 30*time.Millisecond || s.Pending() != 0 {
		t.Fatalf("clock %v pending %d", s.Now(), s.Pending())
	}
}
