package engine

import (
	"context"
	"time"
)

// ZoneTiming is the delay before each stage of a zone's hover reveal.
type ZoneTiming struct {
	Ring  time.Duration
	Label time.Duration
}

// Zone is a hoverable, pressable region that navigates somewhere.
type Zone struct {
	ID       string
	Label    string
	Target   string
	Disabled bool
	Timing   ZoneTiming
	// When the SeenKey flag is set the zone leads to SeenTarget instead.
	SeenKey    string
	SeenTarget string
}

// ZoneState is the render state of one zone.
type ZoneState struct {
	Zone
	Active  bool
	Ring    bool
	Label   bool
	Pending bool
}

// Gate reports whether the stage has unlocked interaction.
type Gate interface {
	Ready() bool
}

// NavigatorConfig holds the zone set and commit policy of a screen.
type NavigatorConfig struct {
	Zones []Zone
	// ConfirmWindow > 0 requires a second activation of the same zone within
	// the window before navigating.
	ConfirmWindow time.Duration
	ExitTarget    string
}

// Navigator maps zone hover and press input to navigation. It stays inert
// until its gate is ready.
type Navigator struct {
	cfg      NavigatorConfig
	gate     Gate
	sched    Scheduler
	navigate func(path string)
	flags    *Flags
	ctx      context.Context

	active   string
	ring     map[string]bool
	label    map[string]bool
	pending  string
	timers   timerSet
	hoverGen uint64
	tapGen   uint64
	disposed bool
}

// NewNavigator returns a navigator that calls navigate on commit.
func NewNavigator(ctx context.Context, cfg NavigatorConfig, gate Gate, sched Scheduler, flags *Flags, navigate func(path string)) *Navigator {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Navigator{
		cfg:      cfg,
		gate:     gate,
		sched:    sched,
		navigate: navigate,
		flags:    flags,
		ctx:      ctx,
		ring:     map[string]bool{},
		label:    map[string]bool{},
		timers:   timerSet{},
	}
}

func (n *Navigator) live() bool { return !n.disposed && (n.gate == nil || n.gate.Ready()) }

func (n *Navigator) zone(id string) (Zone, bool) {
	for _, z := range n.cfg.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// Enter starts the two-stage reveal of zone id (hover or focus).
func (n *Navigator) Enter(id string) {
	if !n.live() {
		return
	}
	z, ok := n.zone(id)
	if !ok {
		return
	}
	if n.active != "" && n.active != id {
		n.reset(n.active)
	}
	n.timers.stop("ring")
	n.timers.stop("label")
	n.active = id
	n.hoverGen++
	gen := n.hoverGen
	n.timers.arm("ring", n.sched, z.Timing.Ring, func() {
		if n.disposed || gen != n.hoverGen || n.active != id {
			return
		}
		delete(n.timers, "ring")
		n.ring[id] = true
	})
	n.timers.arm("label", n.sched, z.Timing.Label, func() {
		if n.disposed || gen != n.hoverGen || n.active != id {
			return
		}
		delete(n.timers, "label")
		n.label[id] = true
	})
}

// Leave cancels the reveal of zone id (mouse leave or blur).
func (n *Navigator) Leave(id string) {
	if n.disposed || id != n.active {
		return
	}
	n.timers.stop("ring")
	n.timers.stop("label")
	n.hoverGen++
	n.active = ""
	n.reset(id)
}

func (n *Navigator) reset(id string) {
	delete(n.ring, id)
	delete(n.label, id)
}

// Activate handles a press, click or Enter on zone id. It reports whether
// navigation was committed.
func (n *Navigator) Activate(id string) bool {
	if !n.live() {
		return false
	}
	z, ok := n.zone(id)
	if !ok || z.Disabled {
		return false
	}
	if n.cfg.ConfirmWindow <= 0 {
		n.commit(z)
		return true
	}
	if n.pending == id {
		n.clearPending()
		n.commit(z)
		return true
	}
	n.pending = id
	n.tapGen++
	gen := n.tapGen
	n.timers.arm("confirm", n.sched, n.cfg.ConfirmWindow, func() {
		if n.disposed || gen != n.tapGen {
			return
		}
		delete(n.timers, "confirm")
		n.pending = ""
	})
	return false
}

func (n *Navigator) clearPending() {
	n.timers.stop("confirm")
	n.tapGen++
	n.pending = ""
}

// Exit navigates to the exit target without touching persisted state.
func (n *Navigator) Exit() bool {
	if n.disposed || n.cfg.ExitTarget == "" {
		return false
	}
	n.navigate(n.cfg.ExitTarget)
	return true
}

func (n *Navigator) commit(z Zone) {
	target := z.Target
	if z.SeenKey != "" && z.SeenTarget != "" && n.flags.Seen(n.ctx, z.SeenKey) {
		target = z.SeenTarget
	}
	if target != "" {
		n.navigate(target)
	}
}

// Pending returns the zone awaiting confirmation, if any.
func (n *Navigator) Pending() string { return n.pending }

// Active returns the hovered or focused zone, if any.
func (n *Navigator) Active() string { return n.active }

// Zones returns the render state of every zone, in configuration order.
func (n *Navigator) Zones() []ZoneState {
	out := make([]ZoneState, 0, len(n.cfg.Zones))
	inert := !n.live()
	for _, z := range n.cfg.Zones {
		st := ZoneState{Zone: z}
		if !inert {
			st.Active = n.active == z.ID
			st.Ring = n.ring[z.ID]
			st.Label = n.label[z.ID]
			st.Pending = n.pending == z.ID
		}
		out = append(out, st)
	}
	return out
}

// Dispose cancels every pending timer.
func (n *Navigator) Dispose() {
	if n.disposed {
		return
	}
	n.disposed = true
	n.hoverGen++
	n.tapGen++
	n.timers.stopAll()
	n.active, n.pending = "", ""
}
