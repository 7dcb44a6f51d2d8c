package ui

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

type palette struct {
	Background lipgloss.Color
	Text       lipgloss.Color
	Muted      lipgloss.Color
	Accent     lipgloss.Color
	AccentAlt  lipgloss.Color
	Border     lipgloss.Color
	Ring       lipgloss.Color
	Sealed     lipgloss.Color
	Fade       lipgloss.Color
}

var palettes = map[string]palette{
	"obsidian": {
		Background: lipgloss.Color("#0b0b0f"),
		Text:       lipgloss.Color("#d8d4cc"),
		Muted:      lipgloss.Color("#6b6760"),
		Accent:     lipgloss.Color("#c9a45c"),
		AccentAlt:  lipgloss.Color("#8e6f3e"),
		Border:     lipgloss.Color("#2a2830"),
		Ring:       lipgloss.Color("#e8c77a"),
		Sealed:     lipgloss.Color("#3d3a42"),
		Fade:       lipgloss.Color("#45423d"),
	},
	"crystal": {
		Background: lipgloss.Color("#0d1620"),
		Text:       lipgloss.Color("#e4f1fb"),
		Muted:      lipgloss.Color("#7893a8"),
		Accent:     lipgloss.Color("#8fd3ff"),
		AccentAlt:  lipgloss.Color("#b9a6ff"),
		Border:     lipgloss.Color("#23384a"),
		Ring:       lipgloss.Color("#d3f0ff"),
		Sealed:     lipgloss.Color("#2e4150"),
		Fade:       lipgloss.Color("#3f5566"),
	},
	"marble": {
		Background: lipgloss.Color("#f2efe9"),
		Text:       lipgloss.Color("#2b2926"),
		Muted:      lipgloss.Color("#8a857c"),
		Accent:     lipgloss.Color("#7d5a3c"),
		AccentAlt:  lipgloss.Color("#4f6d7a"),
		Border:     lipgloss.Color("#cfc8bc"),
		Ring:       lipgloss.Color("#a0522d"),
		Sealed:     lipgloss.Color("#c2bcb0"),
		Fade:       lipgloss.Color("#b5afa4"),
	},
}

func paletteFor(name string) palette {
	if p, ok := palettes[name]; ok {
		return p
	}
	return palettes["obsidian"]
}

func themeNames() []string {
	names := make([]string, 0, len(palettes))
	for k := range palettes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func nextThemeName(current string, step int) string {
	names := themeNames()
	if len(names) == 0 {
		return current
	}
	idx := 0
	for i, name := range names {
		if name == current {
			idx = i
			break
		}
	}
	idx = (idx + step) % len(names)
	if idx < 0 {
		idx += len(names)
	}
	return names[idx]
}

// glamourStyle picks the markdown style matching the palette's background.
func glamourStyle(theme string) string {
	if theme == "marble" {
		return "light"
	}
	return "dark"
}
