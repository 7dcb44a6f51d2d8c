// Package exhibit loads the screen table: routes, media, copy, zones and
// encounter timings.
package exhibit

import (
	_ "embed"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/DaanHessen/measures-tui/internal/engine"
)

//go:embed default.yaml
var defaultExhibit []byte

type Exhibit struct {
	Title   string   `yaml:"title"`
	Start   string   `yaml:"start"`
	Exit    string   `yaml:"exit"`
	Audio   Audio    `yaml:"audio"`
	Screens []Screen `yaml:"screens"`
}

type Audio struct {
	Source       string   `yaml:"source"`
	BaseVolume   float64  `yaml:"base_volume"`
	DuckedVolume float64  `yaml:"ducked_volume"`
	Toned        []string `yaml:"toned"`
}

type Screen struct {
	Route          string    `yaml:"route"`
	Title          string    `yaml:"title"`
	Subtitle       string    `yaml:"subtitle"`
	Return         string    `yaml:"return"`
	Encounter      Encounter `yaml:"encounter"`
	Reel           *Reel     `yaml:"reel"`
	Still          string    `yaml:"still"`
	Original       string    `yaml:"original"`
	Plaque         string    `yaml:"plaque"`
	PlaqueAutoOpen bool      `yaml:"plaque_auto_open"`
	ConfirmWindow  int       `yaml:"confirm_window_ms"`
	Zones          []Zone    `yaml:"zones"`
}

type Encounter struct {
	Identity       string `yaml:"identity"`
	SettleAfterMs  int    `yaml:"settle_after_ms"`
	FadeMs         int    `yaml:"fade_ms"`
	PauseMs        int    `yaml:"pause_ms"`
	SuppressIfSeen bool   `yaml:"suppress_if_seen"`
	SeenLanding    string `yaml:"seen_landing"`
}

type Reel struct {
	FrameMs      int      `yaml:"frame_ms"`
	PlaybackRate float64  `yaml:"playback_rate"`
	Frames       []string `yaml:"frames"`
}

type Zone struct {
	ID         string `yaml:"id"`
	Label      string `yaml:"label"`
	Target     string `yaml:"target"`
	Sealed     bool   `yaml:"sealed"`
	RingMs     int    `yaml:"ring_ms"`
	LabelMs    int    `yaml:"label_ms"`
	SeenKey    string `yaml:"seen_key"`
	SeenTarget string `yaml:"seen_target"`
}

// Load reads the exhibit at path, or the built-in exhibit when path is empty.
func Load(path string) (Exhibit, error) {
	if path == "" {
		return Parse(defaultExhibit)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Exhibit{}, errors.Wrap(err, "read exhibit")
	}
	ex, err := Parse(raw)
	if err != nil {
		return Exhibit{}, errors.Wrap(err, path)
	}
	return ex, nil
}

// Default returns the built-in exhibit.
func Default() Exhibit {
	ex, err := Parse(defaultExhibit)
	if err != nil {
		panic(err)
	}
	return ex
}

// Parse decodes and validates an exhibit document.
func Parse(raw []byte) (Exhibit, error) {
	// keys missing from the document keep these; an explicit 0 mutes
	ex := Exhibit{Audio: Audio{BaseVolume: 0.22, DuckedVolume: 0.07}}
	if err := yaml.Unmarshal(raw, &ex); err != nil {
		return ex, errors.Wrap(err, "exhibit yaml")
	}
	return ex, ex.Validate()
}

// Validate checks routes are unique and every link lands on a screen.
func (ex Exhibit) Validate() error {
	if len(ex.Screens) == 0 {
		return errors.New("exhibit has no screens")
	}
	routes := map[string]bool{}
	for _, s := range ex.Screens {
		if !strings.HasPrefix(s.Route, "/") {
			return errors.Errorf("screen route %q must start with /", s.Route)
		}
		if routes[s.Route] {
			return errors.Errorf("duplicate screen route %q", s.Route)
		}
		routes[s.Route] = true
	}
	known := func(target string) bool { return target == "" || strings.HasPrefix(target, "#") || routes[target] }
	if !routes[ex.StartRoute()] {
		return errors.Errorf("start route %q is not a screen", ex.StartRoute())
	}
	if !known(ex.Exit) {
		return errors.Errorf("exit route %q is not a screen", ex.Exit)
	}
	for _, s := range ex.Screens {
		if !known(s.Return) {
			return errors.Errorf("%s: return route %q is not a screen", s.Route, s.Return)
		}
		if s.Encounter.SeenLanding != "" && s.Encounter.SeenLanding != string(engine.LandInSettle) && s.Encounter.SeenLanding != string(engine.LandInReady) {
			return errors.Errorf("%s: seen_landing must be settle or ready", s.Route)
		}
		for _, z := range s.Zones {
			if !z.Sealed && !known(z.Target) {
				return errors.Errorf("%s: zone %s targets unknown route %q", s.Route, z.ID, z.Target)
			}
			if !known(z.SeenTarget) {
				return errors.Errorf("%s: zone %s seen target %q is not a screen", s.Route, z.ID, z.SeenTarget)
			}
		}
	}
	return nil
}

// StartRoute is the configured entry route, or the first screen.
func (ex Exhibit) StartRoute() string {
	if ex.Start != "" {
		return ex.Start
	}
	if len(ex.Screens) > 0 {
		return ex.Screens[0].Route
	}
	return "/"
}

// Screen looks up the screen mounted at route.
func (ex Exhibit) Screen(route string) (Screen, bool) {
	for _, s := range ex.Screens {
		if s.Route == route {
			return s, true
		}
	}
	return Screen{}, false
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// EncounterConfig converts the screen's timings for the sequencer.
func (s Screen) EncounterConfig(reducedMotion bool) engine.EncounterConfig {
	e := s.Encounter
	identity := e.Identity
	if identity == "" {
		identity = s.Route
	}
	return engine.EncounterConfig{
		Identity:       identity,
		SettleAfter:    ms(e.SettleAfterMs),
		Pause:          ms(e.PauseMs),
		Fade:           ms(e.FadeMs),
		SuppressIfSeen: e.SuppressIfSeen,
		SeenLanding:    engine.SeenLanding(e.SeenLanding),
		ReducedMotion:  reducedMotion,
	}
}

// NavigatorConfig converts the screen's zones for the navigator.
func (s Screen) NavigatorConfig(exit string) engine.NavigatorConfig {
	zones := make([]engine.Zone, 0, len(s.Zones))
	for _, z := range s.Zones {
		zones = append(zones, engine.Zone{
			ID:         z.ID,
			Label:      z.Label,
			Target:     z.Target,
			Disabled:   z.Sealed,
			Timing:     engine.ZoneTiming{Ring: ms(z.RingMs), Label: ms(z.LabelMs)},
			SeenKey:    z.SeenKey,
			SeenTarget: z.SeenTarget,
		})
	}
	return engine.NavigatorConfig{Zones: zones, ConfirmWindow: ms(s.ConfirmWindow), ExitTarget: exit}
}

// FrameInterval is the time one reel frame stays up, scaled by the
// playback rate.
func (r Reel) FrameInterval() time.Duration {
	d := ms(r.FrameMs)
	if d <= 0 {
		d = 400 * time.Millisecond
	}
	if r.PlaybackRate > 0 {
		d = time.Duration(float64(d) / r.PlaybackRate)
	}
	return d
}
