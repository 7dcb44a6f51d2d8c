package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type fakeMedia struct {
	playErr   error
	plays     int
	pauses    int
	rewinds   int
	listeners map[int]func(MediaEvent)
	next      int
}

func (m *fakeMedia) Play() error { m.plays++; return m.playErr }
func (m *fakeMedia) Pause()      { m.pauses++ }
func (m *fakeMedia) Rewind()     { m.rewinds++ }

func (m *fakeMedia) Listen(fn func(MediaEvent)) func() {
	if m.listeners == nil {
		m.listeners = map[int]func(MediaEvent){}
	}
	m.next++
	id := m.next
	m.listeners[id] = fn
	return func() { delete(m.listeners, id) }
}

func (m *fakeMedia) fire(ev MediaEvent) {
	for _, fn := range m.listeners {
		fn(ev)
	}
}

type memFlags struct {
	set     map[string]bool
	writes  int
	readErr error
	setErr  error
}

func (f *memFlags) Flag(_ context.Context, key string) (bool, error) {
	if f.readErr != nil {
		return false, f.readErr
	}
	return f.set[key], nil
}

func (f *memFlags) SetFlag(_ context.Context, key string) error {
	f.writes++
	if f.setErr != nil {
		return f.setErr
	}
	if f.set == nil {
		f.set = map[string]bool{}
	}
	f.set[key] = true
	return nil
}

type phaseLog struct {
	sched *ManualScheduler
	at    []time.Duration
	seen  []Phase
}

func record(s *Sequencer, sched *ManualScheduler) *phaseLog {
	l := &phaseLog{sched: sched}
	s.OnPhaseChange(func(p Phase) {
		l.at = append(l.at, sched.Now())
		l.seen = append(l.seen, p)
	})
	return l
}

var gateIntro = EncounterConfig{
	Identity:    "gate-intro",
	SettleAfter: 5000 * time.Millisecond,
	Pause:       1100 * time.Millisecond,
	Fade:        900 * time.Millisecond,
}

func TestSequencerFallbackTimeline(t *testing.T) {
	sched := NewManualScheduler()
	media := &fakeMedia{}
	flags := &memFlags{}
	s := NewSequencer(gateIntro, sched, WithMedia(media), WithFlags(BestEffort(flags, nil)))
	l := record(s, sched)
	s.Start(context.Background())

	if media.plays != 1 || !s.Stage().VideoVisible {
		t.Fatalf("expected playback to start with video visible")
	}
	sched.AdvanceTo(4999 * time.Millisecond)
	if s.Phase() != PhaseArrive {
		t.Fatalf("phase before fallback = %s", s.Phase())
	}
	sched.AdvanceTo(5000 * time.Millisecond)
	st := s.Stage()
	if st.Phase != PhaseSettle || !st.Fading || !st.StillVisible || !st.VideoVisible {
		t.Fatalf("unexpected stage at settle: %+v", st)
	}
	sched.AdvanceTo(5900 * time.Millisecond)
	st = s.Stage()
	if st.Phase != PhasePause || st.Fading || st.VideoVisible {
		t.Fatalf("unexpected stage after fade: %+v", st)
	}
	sched.AdvanceTo(7000 * time.Millisecond)
	if !s.Ready() {
		t.Fatalf("expected ready at 7000ms, got %s", s.Phase())
	}

	wantPhases := []Phase{PhaseArrive, PhaseSettle, PhasePause, PhaseReady}
	wantAt := []time.Duration{0, 5000 * time.Millisecond, 5900 * time.Millisecond, 7000 * time.Millisecond}
	if !reflect.DeepEqual(l.seen, wantPhases) || !reflect.DeepEqual(l.at, wantAt) {
		t.Fatalf("timeline = %v at %v", l.seen, l.at)
	}
	if media.pauses != 1 || media.rewinds != 1 {
		t.Fatalf("media should be paused and rewound once, got %d/%d", media.pauses, media.rewinds)
	}
	if flags.writes != 1 || !flags.set["gate-intro"] {
		t.Fatalf("expected a single flag write, got %d", flags.writes)
	}
	if sched.Pending() != 0 {
		t.Fatalf("timers left behind: %d", sched.Pending())
	}
}

func TestSequencerSettleRaceIsIdempotent(t *testing.T) {
	for _, mediaFirst := range []bool{true, false} {
		sched := NewManualScheduler()
		media := &fakeMedia{}
		flags := &memFlags{}
		s := NewSequencer(gateIntro, sched, WithMedia(media), WithFlags(BestEffort(flags, nil)))
		l := record(s, sched)
		s.Start(context.Background())

		sched.AdvanceTo(5000*time.Millisecond - time.Nanosecond)
		settle := func() { media.fire(MediaEnded) }
		if mediaFirst {
			settle()
			sched.AdvanceTo(5000 * time.Millisecond)
		} else {
			sched.AdvanceTo(5000 * time.Millisecond)
			settle()
		}
		media.fire(MediaErrored)
		sched.Advance(10 * time.Second)

		settles := 0
		for _, p := range l.seen {
			if p == PhaseSettle {
				settles++
			}
		}
		if settles != 1 {
			t.Fatalf("mediaFirst=%v: %d settle transitions", mediaFirst, settles)
		}
		if flags.writes != 1 {
			t.Fatalf("mediaFirst=%v: %d flag writes", mediaFirst, flags.writes)
		}
		if !s.Ready() {
			t.Fatalf("mediaFirst=%v: not ready", mediaFirst)
		}
	}
}

func TestSequencerMediaEndSettlesEarly(t *testing.T) {
	sched := NewManualScheduler()
	media := &fakeMedia{}
	s := NewSequencer(gateIntro, sched, WithMedia(media))
	s.Start(context.Background())
	sched.Advance(3 * time.Second)
	media.fire(MediaEnded)
	if s.Phase() != PhaseSettle {
		t.Fatalf("expected settle on media end, got %s", s.Phase())
	}
	if len(media.listeners) != 0 {
		t.Fatalf("media listener should detach on settle")
	}
	sched.Advance(2 * time.Second)
	if !s.Ready() {
		t.Fatalf("expected ready 2000ms after settle, got %s", s.Phase())
	}
}

func TestSequencerPlaybackFailureSettles(t *testing.T) {
	sched := NewManualScheduler()
	media := &fakeMedia{playErr: errors.New("autoplay rejected")}
	s := NewSequencer(gateIntro, sched, WithMedia(media))
	l := record(s, sched)
	s.Start(context.Background())
	if s.Phase() != PhaseSettle {
		t.Fatalf("playback failure should settle at once, got %s", s.Phase())
	}
	sched.Advance(2 * time.Second)
	if !s.Ready() {
		t.Fatalf("never reached ready after playback failure")
	}
	if l.seen[0] != PhaseArrive {
		t.Fatalf("arrive should be observed before the failure, got %v", l.seen)
	}
}

func TestSequencerSuppressedWhenSeen(t *testing.T) {
	sched := NewManualScheduler()
	media := &fakeMedia{}
	flags := &memFlags{set: map[string]bool{"gate-intro": true}}
	cfg := gateIntro
	cfg.SuppressIfSeen = true
	s := NewSequencer(cfg, sched, WithMedia(media), WithFlags(BestEffort(flags, nil)))
	l := record(s, sched)
	s.Start(context.Background())

	if media.plays != 0 {
		t.Fatalf("suppressed encounter must not play media")
	}
	for _, p := range l.seen {
		if p == PhaseArrive {
			t.Fatalf("arrive observed for a seen encounter")
		}
	}
	if l.seen[0] != PhaseSettle || s.Stage().VideoVisible {
		t.Fatalf("expected to start settled with the still, got %v %+v", l.seen, s.Stage())
	}
	sched.AdvanceTo(1099 * time.Millisecond)
	if s.Ready() {
		t.Fatalf("ready before the encounter pause elapsed")
	}
	sched.AdvanceTo(1100 * time.Millisecond)
	if !s.Ready() {
		t.Fatalf("expected ready at 1100ms, got %s", s.Phase())
	}
	if flags.writes != 0 {
		t.Fatalf("seen flag rewritten %d times", flags.writes)
	}
}

func TestSequencerSeenLandingReady(t *testing.T) {
	sched := NewManualScheduler()
	flags := &memFlags{set: map[string]bool{"temple": true}}
	s := NewSequencer(EncounterConfig{Identity: "temple", SettleAfter: time.Second, Pause: time.Second, SuppressIfSeen: true, SeenLanding: LandInReady},
		sched, WithMedia(&fakeMedia{}), WithFlags(BestEffort(flags, nil)))
	l := record(s, sched)
	s.Start(context.Background())
	if !reflect.DeepEqual(l.seen, []Phase{PhaseReady}) {
		t.Fatalf("expected to land in ready, got %v", l.seen)
	}
}

func TestSequencerReducedMotion(t *testing.T) {
	sched := NewManualScheduler()
	media := &fakeMedia{}
	flags := &memFlags{}
	cfg := gateIntro
	cfg.ReducedMotion = true
	s := NewSequencer(cfg, sched, WithMedia(media), WithFlags(BestEffort(flags, nil)))
	l := record(s, sched)
	s.Start(context.Background())
	if media.plays != 0 || s.Stage().VideoVisible {
		t.Fatalf("reduced motion must not show or play video")
	}
	sched.AdvanceTo(1100 * time.Millisecond)
	if !reflect.DeepEqual(l.seen, []Phase{PhasePause, PhaseReady}) {
		t.Fatalf("reduced motion timeline = %v", l.seen)
	}
	if flags.writes != 1 {
		t.Fatalf("reduced motion should still mark the visit, writes=%d", flags.writes)
	}
}

func TestSequencerZeroPauseKeepsOrder(t *testing.T) {
	sched := NewManualScheduler()
	s := NewSequencer(EncounterConfig{Identity: "x", SettleAfter: time.Second, Fade: 0, Pause: 0}, sched, WithMedia(&fakeMedia{}))
	l := record(s, sched)
	s.Start(context.Background())
	sched.Advance(time.Second)
	if !reflect.DeepEqual(l.seen, []Phase{PhaseArrive, PhaseSettle, PhasePause, PhaseReady}) {
		t.Fatalf("zero durations timeline = %v", l.seen)
	}
	if l.at[1] != l.at[3] {
		t.Fatalf("settle and ready should share a tick: %v", l.at)
	}
}

func TestSequencerWithoutMedia(t *testing.T) {
	sched := NewManualScheduler()
	s := NewSequencer(gateIntro, sched)
	l := record(s, sched)
	s.Start(context.Background())
	if !reflect.DeepEqual(l.seen, []Phase{PhaseArrive, PhaseSettle, PhasePause}) {
		t.Fatalf("no-media start = %v", l.seen)
	}
	sched.Advance(1100 * time.Millisecond)
	if !s.Ready() {
		t.Fatalf("expected ready after pause")
	}
}

func TestSequencerDisposeSilencesTimers(t *testing.T) {
	sched := NewManualScheduler()
	media := &fakeMedia{}
	flags := &memFlags{}
	s := NewSequencer(gateIntro, sched, WithMedia(media), WithFlags(BestEffort(flags, nil)))
	l := record(s, sched)
	s.Start(context.Background())
	sched.Advance(5000 * time.Millisecond)
	s.Dispose()
	before := len(l.seen)
	media.fire(MediaEnded)
	sched.Advance(time.Minute)
	if len(l.seen) != before {
		t.Fatalf("phase changed after dispose: %v", l.seen)
	}
	if sched.Pending() != 0 {
		t.Fatalf("dispose left %d timers armed", sched.Pending())
	}
}

// A timer whose Stop fails still must not act after dispose.
type leakyScheduler struct{ *ManualScheduler }

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return false }

func (s leakyScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.ManualScheduler.AfterFunc(d, fn)
	return leakyTimer{}
}

func TestSequencerStaleCallbackDropped(t *testing.T) {
	sched := leakyScheduler{NewManualScheduler()}
	flags := &memFlags{}
	s := NewSequencer(gateIntro, sched, WithMedia(&fakeMedia{}), WithFlags(BestEffort(flags, nil)))
	l := record(s, sched.ManualScheduler)
	s.Start(context.Background())
	s.Dispose()
	sched.Advance(time.Minute)
	if len(l.seen) != 1 || flags.writes != 0 {
		t.Fatalf("stale timers acted: phases=%v writes=%d", l.seen, flags.writes)
	}
}

func TestSequencerNewerMountSilencesOlder(t *testing.T) {
	sched := NewManualScheduler()
	gens := NewGenerations()
	old := NewSequencer(gateIntro, sched, WithMedia(&fakeMedia{}), WithGenerations(gens))
	oldLog := record(old, sched)
	old.Start(context.Background())
	fresh := NewSequencer(gateIntro, sched, WithMedia(&fakeMedia{}), WithGenerations(gens))
	fresh.Start(context.Background())
	sched.Advance(time.Minute)
	if len(oldLog.seen) != 1 {
		t.Fatalf("older mount kept advancing: %v", oldLog.seen)
	}
	if !fresh.Ready() {
		t.Fatalf("newer mount did not reach ready")
	}
}

func TestSequencerPersistenceUnavailable(t *testing.T) {
	sched := NewManualScheduler()
	flags := &memFlags{readErr: errors.New("storage offline"), setErr: errors.New("storage offline")}
	cfg := gateIntro
	cfg.SuppressIfSeen = true
	media := &fakeMedia{}
	s := NewSequencer(cfg, sched, WithMedia(media), WithFlags(BestEffort(flags, nil)))
	s.Start(context.Background())
	if s.Phase() != PhaseArrive || media.plays != 1 {
		t.Fatalf("unreadable flag should count as not seen")
	}
	sched.Advance(7 * time.Second)
	if !s.Ready() {
		t.Fatalf("storage failure blocked ready")
	}
}

func TestSequencerReachesReadyWithinBudget(t *testing.T) {
	configs := []EncounterConfig{
		{Identity: "a", SettleAfter: 5200 * time.Millisecond, Fade: 900 * time.Millisecond, Pause: 1100 * time.Millisecond},
		{Identity: "b", SettleAfter: 6200 * time.Millisecond, Fade: 1200 * time.Millisecond, Pause: 2400 * time.Millisecond},
		{Identity: "c", SettleAfter: 0, Fade: 0, Pause: 0},
		{Identity: "d", SettleAfter: 9 * time.Second, Fade: 850 * time.Millisecond, Pause: 0},
	}
	for _, cfg := range configs {
		sched := NewManualScheduler()
		s := NewSequencer(cfg, sched, WithMedia(&fakeMedia{}))
		s.Start(context.Background())
		sched.Advance(cfg.SettleAfter + cfg.Fade + cfg.Pause)
		if !s.Ready() {
			t.Fatalf("%s: not ready within budget, phase %s", cfg.Identity, s.Phase())
		}
	}
}
