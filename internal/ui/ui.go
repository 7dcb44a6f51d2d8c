package ui

import (
	"context"
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/DaanHessen/measures-tui/internal/audio"
	"github.com/DaanHessen/measures-tui/internal/engine"
	"github.com/DaanHessen/measures-tui/internal/exhibit"
	"github.com/DaanHessen/measures-tui/internal/text"
	"github.com/DaanHessen/measures-tui/internal/util"
)

const actionReveal = "#reveal"

// ProgressRecorder remembers the last visited route.
type ProgressRecorder interface {
	RecordRoute(ctx context.Context, route string) error
}

type model struct {
	ctx      context.Context
	ex       exhibit.Exhibit
	cfg      util.Config
	flags    *engine.Flags
	progress ProgressRecorder
	bus      *audio.Bus
	sched    cmdScheduler
	gens     *engine.Generations
	renderer text.Renderer
	logger   *log.Logger

	start  string
	route  string
	next   string
	screen exhibit.Screen
	seq    *engine.Sequencer
	nav    *engine.Navigator
	reel   *text.Reel
	unsub  func()

	plaqueOpen bool
	revealed   bool
	focus      int
	theme      string
	pal        palette
	status     string
	width      int
	height     int
}

func newModel(ctx context.Context, opts Options, sched cmdScheduler) *model {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	bus := opts.Bus
	if bus == nil {
		bus = audio.New(nil)
	}
	start := opts.Start
	if start == "" {
		start = opts.Exhibit.StartRoute()
	}
	theme := opts.Config.Theme
	if _, ok := palettes[theme]; !ok {
		theme = "obsidian"
	}
	return &model{
		ctx:      ctx,
		ex:       opts.Exhibit,
		cfg:      opts.Config,
		flags:    engine.BestEffort(opts.Flags, logger),
		progress: opts.Progress,
		bus:      bus,
		sched:    sched,
		gens:     engine.NewGenerations(),
		renderer: text.WithFallback(text.NewGlamourRenderer(glamourStyle(theme)), text.NewPlainRenderer()),
		logger:   logger,
		start:    start,
		focus:    -1,
		theme:    theme,
		pal:      paletteFor(theme),
	}
}

// navigate is handed to the navigator. Route changes are applied after the
// current message so a commit never tears down the navigator mid-call.
func (m *model) navigate(path string) {
	if path == actionReveal {
		m.revealed = !m.revealed
		return
	}
	m.next = path
}

func (m *model) flush() {
	for m.next != "" {
		path := m.next
		m.next = ""
		m.mount(path)
	}
}

// mount tears down the current screen and starts the encounter at path.
func (m *model) mount(path string) {
	screen, ok := m.ex.Screen(path)
	if !ok {
		m.logger.Printf("no screen at %s", path)
		m.status = "nothing at " + path
		if m.seq != nil {
			return
		}
		path = m.ex.StartRoute()
		screen, _ = m.ex.Screen(path)
	}
	m.unmount()
	m.route, m.screen = path, screen
	m.focus, m.revealed, m.status = -1, false, ""

	m.bus.RouteChanged(path)
	if m.progress != nil {
		if err := m.progress.RecordRoute(m.ctx, path); err != nil {
			m.logger.Printf("progress not recorded: %v", err)
		}
	}

	opts := []engine.SequencerOption{engine.WithFlags(m.flags), engine.WithLogger(m.logger), engine.WithGenerations(m.gens)}
	if screen.Reel != nil && len(screen.Reel.Frames) > 0 {
		m.reel = text.NewReel(screen.Reel.Frames, screen.Reel.FrameInterval(), m.sched)
		opts = append(opts, engine.WithMedia(m.reel))
	}
	m.seq = engine.NewSequencer(screen.EncounterConfig(m.cfg.ReducedMotion), m.sched, opts...)
	m.unsub = m.seq.OnPhaseChange(func(p engine.Phase) {
		if p == engine.PhaseReady && screen.PlaqueAutoOpen {
			m.openPlaque()
		}
	})
	m.nav = engine.NewNavigator(m.ctx, screen.NavigatorConfig(m.ex.Exit), m.seq, m.sched, m.flags, m.navigate)
	m.seq.Start(m.ctx)
}

func (m *model) unmount() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
	if m.nav != nil {
		m.nav.Dispose()
		m.nav = nil
	}
	if m.seq != nil {
		m.seq.Dispose()
		m.seq = nil
	}
	m.reel = nil
	m.closePlaque()
}

func (m *model) openPlaque() {
	if m.plaqueOpen || m.screen.Plaque == "" {
		return
	}
	m.plaqueOpen = true
	m.bus.Duck()
}

func (m *model) closePlaque() {
	if !m.plaqueOpen {
		return
	}
	m.plaqueOpen = false
	m.bus.Restore()
}

func (m *model) zoneIDs() []string {
	ids := make([]string, 0, len(m.screen.Zones))
	for _, z := range m.screen.Zones {
		ids = append(ids, z.ID)
	}
	return ids
}

func (m *model) focusZone(i int) {
	ids := m.zoneIDs()
	if m.nav == nil || i < 0 || i >= len(ids) {
		return
	}
	m.focus = i
	m.nav.Enter(ids[i])
}

func (m *model) blur() {
	ids := m.zoneIDs()
	if m.nav != nil && m.focus >= 0 && m.focus < len(ids) {
		m.nav.Leave(ids[m.focus])
	}
	m.focus = -1
}

func (m *model) activate() {
	ids := m.zoneIDs()
	if m.nav == nil || m.focus < 0 || m.focus >= len(ids) {
		return
	}
	z := m.screen.Zones[m.focus]
	if z.Sealed {
		m.status = z.Label + " is sealed"
		return
	}
	if !m.nav.Activate(ids[m.focus]) && m.nav.Pending() == ids[m.focus] {
		m.status = "again to confirm"
	}
}

// dispose releases the mounted screen. The bus is owned by the caller.
func (m *model) dispose() {
	m.unmount()
}

// tea.Model implementation ---------------------------------------------------

func (m *model) Init() tea.Cmd {
	m.mount(m.start)
	return m.sched.drain()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var quit tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case timerFiredMsg:
		m.sched.fire(msg.id)
	case tea.KeyMsg:
		quit = m.handleKey(msg)
	}
	m.flush()
	if quit != nil {
		return m, quit
	}
	return m, m.sched.drain()
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	// any key is a user gesture; a rejected autoplay may start now
	m.bus.Resume()
	key := msg.String()
	switch key {
	case "ctrl+c", "q":
		m.dispose()
		return tea.Quit
	case "tab":
		if n := len(m.screen.Zones); n > 0 {
			m.focusZone((m.focus + 1) % n)
		}
	case "shift+tab":
		if n := len(m.screen.Zones); n > 0 {
			m.focusZone((m.focus - 1 + n) % n)
		}
	case "enter", " ":
		m.activate()
	case "esc":
		if m.plaqueOpen {
			m.closePlaque()
		} else {
			m.blur()
		}
	case "o":
		if m.plaqueOpen {
			m.closePlaque()
		} else {
			m.openPlaque()
		}
	case "b":
		if m.screen.Return != "" {
			m.navigate(m.screen.Return)
		}
	case "x":
		if m.nav != nil {
			m.nav.Exit()
		}
	case "t":
		m.theme = nextThemeName(m.theme, 1)
		m.pal = paletteFor(m.theme)
		m.renderer = text.WithFallback(text.NewGlamourRenderer(glamourStyle(m.theme)), text.NewPlainRenderer())
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			m.focusZone(int(key[0] - '1'))
		}
	}
	return nil
}

func (m *model) View() string {
	if m.seq == nil {
		return ""
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(m.pal.Accent).Render(m.screen.Title)
	if m.screen.Subtitle != "" {
		title += lipgloss.NewStyle().Foreground(m.pal.Muted).Render("  " + m.screen.Subtitle)
	}
	parts := []string{title, m.renderStage(width), m.renderZones()}
	if m.plaqueOpen {
		parts = append(parts, m.renderPlaque(width))
	}
	parts = append(parts, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *model) renderStage(width int) string {
	st := m.seq.Stage()
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(m.pal.Border).Padding(0, 1).Width(min(width-2, 72))
	body := m.screen.Still
	if m.revealed && m.screen.Original != "" {
		body = m.screen.Original
	}
	style := lipgloss.NewStyle().Foreground(m.pal.Text)
	switch {
	case st.VideoVisible && m.reel != nil:
		body = m.reel.Frame()
		if st.Fading {
			style = style.Foreground(m.pal.Fade)
		}
	case !st.StillVisible:
		body = ""
	}
	return box.Render(style.Render(strings.TrimRight(body, "\n")))
}

func (m *model) renderZones() string {
	if m.nav == nil {
		return ""
	}
	ready := m.seq.Ready()
	var b strings.Builder
	for i, z := range m.nav.Zones() {
		marker := "○"
		style := lipgloss.NewStyle().Foreground(m.pal.Muted)
		switch {
		case z.Disabled:
			style = lipgloss.NewStyle().Foreground(m.pal.Sealed)
		case z.Pending:
			marker = "◉"
			style = lipgloss.NewStyle().Foreground(m.pal.AccentAlt).Bold(true)
		case z.Ring:
			marker = "●"
			style = lipgloss.NewStyle().Foreground(m.pal.Ring)
		case ready:
			style = lipgloss.NewStyle().Foreground(m.pal.Text)
		}
		label := z.ID
		if z.Label && z.Zone.Label != "" {
			label = z.Zone.Label
		}
		fmt.Fprintf(&b, "%s %s\n", style.Render(fmt.Sprintf("[%d] %s", i+1, marker)), style.Render(label))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) renderPlaque(width int) string {
	md, err := m.renderer.Render(m.screen.Plaque, min(width-4, 70))
	if err != nil {
		md = m.screen.Plaque
	}
	return lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(m.pal.AccentAlt).Padding(0, 1).Render(md)
}

func (m *model) renderFooter() string {
	st := m.bus.State()
	line := fmt.Sprintf("%s · audio %s", m.seq.Phase(), st.Intent)
	if m.status != "" {
		line += " · " + m.status
	}
	keys := "1-9/tab focus · enter open · o plaque · b back · x exit · t theme · q quit"
	return lipgloss.NewStyle().Foreground(m.pal.Muted).Render(line + "\n" + keys)
}
