package engine

import (
	"context"
	"log"
)

// MediaEvent is a signal raised by a playing media resource.
type MediaEvent int

const (
	MediaEnded MediaEvent = iota + 1
	MediaErrored
)

func (e MediaEvent) String() string {
	switch e {
	case MediaEnded:
		return "ended"
	case MediaErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Media is the animated layer of an encounter.
type Media interface {
	// Play begins playback. An error means playback could not start
	// (rejected autoplay, missing or undecodable source).
	Play() error
	Pause()
	Rewind()
	// Listen registers fn for media events and returns a function that
	// detaches it.
	Listen(fn func(MediaEvent)) (detach func())
}

// FlagStore persists one boolean per visit identity.
type FlagStore interface {
	Flag(ctx context.Context, key string) (bool, error)
	SetFlag(ctx context.Context, key string) error
}

// BestEffort wraps a FlagStore so that failures are logged and reported as
// "not seen". A nil store behaves as an empty one.
func BestEffort(fs FlagStore, logger *log.Logger) *Flags {
	return &Flags{store: fs, logger: logger}
}

// Flags is a FlagStore view that never fails.
type Flags struct {
	store  FlagStore
	logger *log.Logger
}

// Seen reports the flag for key, false when the store is unavailable.
func (f *Flags) Seen(ctx context.Context, key string) bool {
	if f == nil || f.store == nil || key == "" {
		return false
	}
	seen, err := f.store.Flag(ctx, key)
	if err != nil {
		f.logf("visit flag %q unavailable: %v", key, err)
		return false
	}
	return seen
}

// Mark writes the flag for key, logging a failure.
func (f *Flags) Mark(ctx context.Context, key string) {
	if f == nil || f.store == nil || key == "" {
		return
	}
	if err := f.store.SetFlag(ctx, key); err != nil {
		f.logf("visit flag %q not written: %v", key, err)
	}
}

func (f *Flags) logf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Printf(format, args...)
	}
}
