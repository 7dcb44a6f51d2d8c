package text

import (
	"time"

	"github.com/pkg/errors"

	"github.com/DaanHessen/measures-tui/internal/engine"
)

// ErrEmptyReel is returned by Play when a reel has no frames to show.
var ErrEmptyReel = errors.New("reel has no frames")

// Reel is an ASCII animation that plays as encounter media. Frames advance
// on the scheduler; the last frame raises MediaEnded.
type Reel struct {
	frames    []string
	interval  time.Duration
	sched     engine.Scheduler
	index     int
	playing   bool
	timer     engine.Timer
	listeners map[int]func(engine.MediaEvent)
	nextID    int
}

// NewReel returns a reel showing each frame for interval.
func NewReel(frames []string, interval time.Duration, sched engine.Scheduler) *Reel {
	if interval <= 0 {
		interval = 400 * time.Millisecond
	}
	return &Reel{frames: frames, interval: interval, sched: sched, listeners: map[int]func(engine.MediaEvent){}}
}

func (r *Reel) Play() error {
	if len(r.frames) == 0 {
		return ErrEmptyReel
	}
	if r.playing {
		return nil
	}
	r.playing = true
	r.arm()
	return nil
}

func (r *Reel) arm() {
	r.timer = r.sched.AfterFunc(r.interval, r.tick)
}

func (r *Reel) tick() {
	if !r.playing {
		return
	}
	if r.index+1 < len(r.frames) {
		r.index++
		r.arm()
		return
	}
	r.playing = false
	r.timer = nil
	r.raise(engine.MediaEnded)
}

func (r *Reel) Pause() {
	r.playing = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Reel) Rewind() { r.index = 0 }

func (r *Reel) Listen(fn func(engine.MediaEvent)) func() {
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() { delete(r.listeners, id) }
}

func (r *Reel) raise(ev engine.MediaEvent) {
	fns := make([]func(engine.MediaEvent), 0, len(r.listeners))
	for id := 0; id < r.nextID; id++ {
		if fn, ok := r.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	for _, fn := range fns {
		fn(ev)
	}
}

// Frame is the frame currently on screen.
func (r *Reel) Frame() string {
	if len(r.frames) == 0 {
		return ""
	}
	return r.frames[r.index]
}

// Index is the position of the current frame.
func (r *Reel) Index() int { return r.index }

// Playing reports whether frames are advancing.
func (r *Reel) Playing() bool { return r.playing }
