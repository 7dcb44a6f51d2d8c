package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// EncounterConfig is the per-screen timing and persistence policy of an
// encounter. It is fixed for the lifetime of a Sequencer.
type EncounterConfig struct {
	Identity       string        // visit identity, key of the persisted seen flag
	SettleAfter    time.Duration // fallback when media never reports its end
	Pause          time.Duration // encounter pause between settle and ready
	Fade           time.Duration // crossfade from video to still
	SuppressIfSeen bool
	SeenLanding    SeenLanding
	ReducedMotion  bool
}

// SequencerOption configures optional collaborators of a Sequencer.
type SequencerOption func(*Sequencer)

// WithMedia sets the animated layer. Without it the encounter settles as soon
// as it starts.
func WithMedia(m Media) SequencerOption { return func(s *Sequencer) { s.media = m } }

// WithFlags sets where seen flags are read and written.
func WithFlags(f *Flags) SequencerOption { return func(s *Sequencer) { s.flags = f } }

// WithLogger sets the logger for phase and failure lines.
func WithLogger(l *log.Logger) SequencerOption { return func(s *Sequencer) { s.logger = l } }

// WithGenerations shares a registry so a newer mount of the same identity
// silences this one.
func WithGenerations(g *Generations) SequencerOption { return func(s *Sequencer) { s.gens = g } }

// Sequencer runs the arrive → settle → pause → ready phase machine for one
// mounted screen. All methods and callbacks must run on one event loop.
type Sequencer struct {
	id     uuid.UUID
	cfg    EncounterConfig
	sched  Scheduler
	media  Media
	flags  *Flags
	logger *log.Logger
	gens   *Generations
	claim  uint64

	ctx      context.Context
	stage    Stage
	started  bool
	settled  bool
	marked   bool
	disposed bool
	emitted  bool
	gen      uint64
	timers   timerSet
	detach   func()

	listeners []*phaseListener
}

type phaseListener struct{ fn func(Phase) }

// NewSequencer builds a sequencer for cfg. Timers are armed on sched.
func NewSequencer(cfg EncounterConfig, sched Scheduler, opts ...SequencerOption) *Sequencer {
	if cfg.SeenLanding == "" {
		cfg.SeenLanding = LandInSettle
	}
	s := &Sequencer{
		id:     uuid.New(),
		cfg:    cfg,
		sched:  sched,
		timers: timerSet{},
		ctx:    context.Background(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.gens != nil {
		s.claim = s.gens.claim(cfg.Identity)
	}
	return s
}

// ID identifies this mount in logs.
func (s *Sequencer) ID() uuid.UUID { return s.id }

// Config returns the encounter configuration.
func (s *Sequencer) Config() EncounterConfig { return s.cfg }

// Phase returns the current phase.
func (s *Sequencer) Phase() Phase { return s.stage.Phase }

// Ready reports whether interaction may unlock.
func (s *Sequencer) Ready() bool { return s.stage.Phase == PhaseReady }

// Stage returns a render snapshot.
func (s *Sequencer) Stage() Stage { return s.stage }

// OnPhaseChange registers fn for every phase entered after registration.
func (s *Sequencer) OnPhaseChange(fn func(Phase)) (unsubscribe func()) {
	l := &phaseListener{fn: fn}
	s.listeners = append(s.listeners, l)
	return func() {
		for i, cur := range s.listeners {
			if cur == l {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Start begins the encounter. Calling it twice, or after Dispose, is a no-op.
func (s *Sequencer) Start(ctx context.Context) {
	if s.started || s.disposed {
		return
	}
	s.started = true
	if ctx != nil {
		s.ctx = ctx
	}
	gen := s.gen

	if s.cfg.ReducedMotion {
		s.stage.StillVisible = true
		s.enter(PhasePause)
		s.afterPause(gen)
		return
	}

	if s.cfg.SuppressIfSeen && s.flags.Seen(s.ctx, s.cfg.Identity) {
		s.settled, s.marked = true, true
		s.stage.StillVisible = true
		s.stage.Suppressed = true
		s.logf("encounter %s [%s] already seen, landing in %s", s.cfg.Identity, s.id, s.cfg.SeenLanding)
		if s.cfg.SeenLanding == LandInReady {
			s.enter(PhaseReady)
			return
		}
		s.enter(PhaseSettle)
		if s.live(gen) {
			s.enterPause(gen)
		}
		return
	}

	s.emit(PhaseArrive)
	if !s.live(gen) {
		return
	}
	if s.media == nil {
		s.settle(gen, "no media")
		return
	}
	s.stage.VideoVisible = true
	s.detach = s.media.Listen(func(ev MediaEvent) { s.settle(gen, "media "+ev.String()) })
	s.timers.arm("settle", s.sched, s.cfg.SettleAfter, func() { s.settle(gen, "fallback timer") })
	if err := s.media.Play(); err != nil {
		s.logf("encounter %s [%s] playback failed: %v", s.cfg.Identity, s.id, err)
		s.settle(gen, "playback failure")
	}
}

// Dispose cancels every pending timer and detaches from the media. No phase
// callback runs afterwards.
func (s *Sequencer) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.gen++
	s.timers.stopAll()
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	if s.media != nil && !s.settled && s.stage.VideoVisible {
		s.media.Pause()
	}
	s.listeners = nil
}

// settle resolves the media-end / fallback race exactly once.
func (s *Sequencer) settle(gen uint64, cause string) {
	if !s.live(gen) || s.settled {
		return
	}
	s.settled = true
	s.timers.stop("settle")
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	played := s.stage.VideoVisible
	if s.media != nil && played {
		s.media.Pause()
		s.media.Rewind()
	}
	s.markSeen()
	s.logf("encounter %s [%s] settle (%s)", s.cfg.Identity, s.id, cause)

	s.stage.StillVisible = true
	fade := played && s.cfg.Fade > 0
	if !fade {
		s.stage.VideoVisible = false
	}
	s.stage.Fading = fade
	s.enter(PhaseSettle)
	if !s.live(gen) {
		return
	}
	if !fade {
		s.enterPause(gen)
		return
	}
	s.timers.arm("fade", s.sched, s.cfg.Fade, func() {
		if !s.live(gen) {
			return
		}
		delete(s.timers, "fade")
		s.stage.VideoVisible = false
		s.stage.Fading = false
		s.enterPause(gen)
	})
}

func (s *Sequencer) enterPause(gen uint64) {
	s.enter(PhasePause)
	if s.live(gen) {
		s.afterPause(gen)
	}
}

func (s *Sequencer) afterPause(gen uint64) {
	if s.cfg.Pause <= 0 {
		s.becomeReady(gen)
		return
	}
	s.timers.arm("ready", s.sched, s.cfg.Pause, func() {
		if !s.live(gen) {
			return
		}
		delete(s.timers, "ready")
		s.becomeReady(gen)
	})
}

func (s *Sequencer) becomeReady(gen uint64) {
	// reduced motion never settles, so the flag is written on arrival at ready
	s.markSeen()
	if s.live(gen) {
		s.enter(PhaseReady)
	}
}

func (s *Sequencer) markSeen() {
	if s.marked || s.cfg.Identity == "" {
		return
	}
	s.marked = true
	s.flags.Mark(s.ctx, s.cfg.Identity)
}

// enter advances to p; backwards or repeated transitions are ignored.
func (s *Sequencer) enter(p Phase) {
	if p < s.stage.Phase || (p == s.stage.Phase && s.emitted) {
		return
	}
	s.emit(p)
}

func (s *Sequencer) emit(p Phase) {
	s.stage.Phase = p
	s.emitted = true
	for _, l := range append([]*phaseListener(nil), s.listeners...) {
		if s.disposed {
			return
		}
		l.fn(p)
	}
}

func (s *Sequencer) live(gen uint64) bool {
	if s.disposed || gen != s.gen {
		return false
	}
	return s.gens == nil || s.gens.current(s.cfg.Identity, s.claim)
}

func (s *Sequencer) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Generations hands out mount tokens per visit identity so that an older
// sequencer for the same identity goes quiet once a newer one exists.
type Generations struct {
	latest map[string]uint64
}

func NewGenerations() *Generations { return &Generations{latest: map[string]uint64{}} }

func (g *Generations) claim(identity string) uint64 {
	g.latest[identity]++
	return g.latest[identity]
}

func (g *Generations) current(identity string, token uint64) bool {
	return g.latest[identity] == token
}
