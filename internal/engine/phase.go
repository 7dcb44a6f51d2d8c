package engine

// Phase is a stage of an encounter. Phases are totally ordered and a
// sequencer only ever moves forward through them.
type Phase int

const (
	PhaseArrive Phase = iota
	PhaseSettle
	PhasePause
	PhaseReady
)

var phaseNames = [...]string{"arrive", "settle", "pause", "ready"}

func (p Phase) String() string {
	if p < PhaseArrive || p > PhaseReady {
		return "unknown"
	}
	return phaseNames[p]
}

// SeenLanding selects where a suppressed (already seen) encounter begins.
type SeenLanding string

const (
	LandInSettle SeenLanding = "settle"
	LandInReady  SeenLanding = "ready"
)

// Stage is a render snapshot of an encounter: which layers are visible and
// whether the crossfade is running.
type Stage struct {
	Phase        Phase
	VideoVisible bool
	StillVisible bool
	Fading       bool
	Suppressed   bool
}
