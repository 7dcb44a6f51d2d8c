// Package ebitenaudio plays the ambient channel through ebiten's audio
// context.
package ebitenaudio

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/pkg/errors"

	ambient "github.com/DaanHessen/measures-tui/internal/audio"
)

const sampleRate = 44100

var (
	ctxOnce sync.Once
	ctx     *audio.Context
)

// one context per process; ebiten panics on a second NewContext
func audioContext() *audio.Context {
	ctxOnce.Do(func() { ctx = audio.NewContext(sampleRate) })
	return ctx
}

type element struct {
	file   *os.File
	player *audio.Player
}

// Opener returns an Opener that loops the file at path forever.
func Opener(path string) ambient.Opener {
	return func() (ambient.Element, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "open ambient source")
		}
		src, length, err := decode(path, f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "decode %s", filepath.Base(path))
		}
		p, err := audioContext().NewPlayer(audio.NewInfiniteLoop(src, length))
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "ambient player")
		}
		p.SetVolume(0)
		return &element{file: f, player: p}, nil
	}
}

type stream interface {
	io.ReadSeeker
	Length() int64
}

func decode(path string, r io.ReadSeeker) (io.ReadSeeker, int64, error) {
	var (
		s   stream
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		s, err = mp3.DecodeWithSampleRate(sampleRate, r)
	case ".ogg":
		s, err = vorbis.DecodeWithSampleRate(sampleRate, r)
	case ".wav":
		s, err = wav.DecodeWithSampleRate(sampleRate, r)
	default:
		return nil, 0, errors.Errorf("unsupported ambient format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, 0, err
	}
	return s, s.Length(), nil
}

// errNotReady mirrors a rejected autoplay: the device is not unlocked yet.
var errNotReady = errors.New("audio device not ready")

func (e *element) Play() error {
	e.player.Play()
	if !audioContext().IsReady() {
		return errNotReady
	}
	return nil
}

func (e *element) Pause() { e.player.Pause() }

func (e *element) Seek(pos time.Duration) error { return e.player.SetPosition(pos) }

func (e *element) SetVolume(v float64) { e.player.SetVolume(v) }

func (e *element) Close() error {
	e.player.Pause()
	err := e.player.Close()
	if cerr := e.file.Close(); err == nil {
		err = cerr
	}
	return err
}
