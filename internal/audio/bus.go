// Package audio owns the ambient tone channel shared by every screen.
package audio

import (
	"log"
	"strings"
	"time"
)

// Default channel levels.
const (
	BaseVolume   = 0.22
	DuckedVolume = 0.07
)

// Intent is the last requested state of the channel.
type Intent int

const (
	Inactive Intent = iota
	Active
	Ducked
)

func (i Intent) String() string {
	switch i {
	case Active:
		return "active"
	case Ducked:
		return "ducked"
	default:
		return "inactive"
	}
}

// Element is the single playable resource behind a bus.
type Element interface {
	// Play starts or resumes playback. It may fail, e.g. before the output
	// device is unlocked; volume changes must still be honoured afterwards.
	Play() error
	Pause()
	Seek(pos time.Duration) error
	SetVolume(v float64)
	Close() error
}

// Opener creates the element. A bus calls it at most once.
type Opener func() (Element, error)

// ToneRule reports whether the channel should sound on a route.
type ToneRule func(path string) bool

// PrefixRule matches any path under one of prefixes.
func PrefixRule(prefixes ...string) ToneRule {
	return func(path string) bool {
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}
}

// Option configures a Bus.
type Option func(*Bus)

// WithVolumes overrides the base and ducked volumes.
func WithVolumes(base, ducked float64) Option { return func(b *Bus) { b.base, b.ducked = base, ducked } }

// WithRule sets which routes are toned. The default tones none.
func WithRule(r ToneRule) Option { return func(b *Bus) { b.rule = r } }

// WithLogger sets the logger for deferred plays and open failures.
func WithLogger(l *log.Logger) Option { return func(b *Bus) { b.logger = l } }

// State is a snapshot of the channel.
type State struct {
	Intent  Intent
	Volume  float64
	Playing bool
	Route   string
	Opened  bool
}

// Bus is the ambient channel. Every mutation of the element goes through
// Activate, Duck, Restore and RouteChanged; callers share one event loop.
type Bus struct {
	open   Opener
	rule   ToneRule
	logger *log.Logger
	base   float64
	ducked float64

	el      Element
	openErr error
	opened  bool
	closed  bool

	active  bool
	intent  Intent
	volume  float64
	playing bool
	route   string
}

// New returns a bus whose element is opened lazily on first activation.
func New(open Opener, opts ...Option) *Bus {
	b := &Bus{
		open:   open,
		base:   BaseVolume,
		ducked: DuckedVolume,
		rule:   func(string) bool { return false },
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bus) element() Element {
	if b.closed {
		return nil
	}
	if !b.opened {
		b.opened = true
		if b.open != nil {
			b.el, b.openErr = b.open()
			if b.openErr != nil {
				b.logf("ambient channel unavailable: %v", b.openErr)
			}
		}
	}
	return b.el
}

// Activate turns the channel on at base volume, or silences, pauses and
// rewinds it.
func (b *Bus) Activate(on bool) {
	if b.closed {
		return
	}
	if on {
		b.active = true
		b.intent = Active
		el := b.element()
		if el != nil && !b.playing {
			if err := el.Play(); err != nil {
				b.logf("ambient play deferred: %v", err)
			} else {
				b.playing = true
			}
		}
		b.setVolume(b.base)
		return
	}
	b.active = false
	b.intent = Inactive
	b.setVolume(0)
	if b.el != nil {
		b.el.Pause()
		if err := b.el.Seek(0); err != nil {
			b.logf("ambient rewind: %v", err)
		}
	}
	b.playing = false
}

// Duck lowers the channel without pausing it.
func (b *Bus) Duck() {
	if b.closed {
		return
	}
	b.intent = Ducked
	b.setVolume(b.ducked)
}

// Restore raises the channel back to base volume, only while the channel is
// active and the current route is still toned.
func (b *Bus) Restore() {
	if b.closed || !b.active || !b.rule(b.route) {
		return
	}
	b.intent = Active
	b.setVolume(b.base)
}

// RouteChanged records the current route and activates the channel when
// the route is toned.
func (b *Bus) RouteChanged(path string) {
	if b.closed {
		return
	}
	b.route = path
	b.Activate(b.rule(path))
}

// Resume retries playback after a user gesture unlocked the output.
func (b *Bus) Resume() {
	if b.closed || !b.active || b.playing || b.el == nil {
		return
	}
	if err := b.el.Play(); err != nil {
		b.logf("ambient play deferred: %v", err)
		return
	}
	b.playing = true
	b.el.SetVolume(b.volume)
}

// State returns a snapshot of the channel.
func (b *Bus) State() State {
	return State{Intent: b.intent, Volume: b.volume, Playing: b.playing, Route: b.route, Opened: b.el != nil}
}

// Close tears the element down. Later calls are no-ops.
func (b *Bus) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.active = false
	b.intent = Inactive
	b.playing = false
	b.volume = 0
	if b.el == nil {
		return nil
	}
	el := b.el
	b.el = nil
	el.Pause()
	return el.Close()
}

func (b *Bus) setVolume(v float64) {
	b.volume = v
	if b.el != nil {
		b.el.SetVolume(v)
	}
}

func (b *Bus) logf(format string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}
