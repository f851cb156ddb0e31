package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nathoo/dungeonmind/types"
)

// renderStatusBar produces a full-width inverted status line showing
// actor count, quest counts by state, and the tick counter.
func (m Model) renderStatusBar() string {
	live, _ := m.engine.Quests.Snapshot()
	var pending, active, terminal int
	for _, inst := range live {
		switch inst.State {
		case types.QuestPending:
			pending++
		case types.QuestActive:
			active++
		default:
			terminal++
		}
	}

	left := fmt.Sprintf(" Actors: %d | Quests: %d pending, %d active", len(m.engine.Actors()), pending, active)
	if terminal > 0 {
		left += fmt.Sprintf(", %d resolved", terminal)
	}
	right := fmt.Sprintf("T:%d ", m.engine.TickCount())

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
