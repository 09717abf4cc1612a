package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader produces the top bar:
//
//	CALIBSCOPE  |  so101-a  |  Hand-Eye  Joints
func renderHeader(m *Model) string {
	brand := headerBrandStyle.Render("CALIBSCOPE")
	sep := headerSepStyle.Render(" │ ")

	parts := []string{brand, sep}

	if m.screen == ScreenWorkspace && m.device != nil {
		parts = append(parts, headerMetaStyle.Render(m.device.Name))
		if m.device.Model != "" {
			parts = append(parts, headerMetaStyle.Render(" ("+m.device.Model+")"))
		}
		parts = append(parts, sep)
		parts = append(parts, tabLabel("Hand-Eye", m.tab == TabHandEye))
		parts = append(parts, "  ")
		parts = append(parts, tabLabel("Joints", m.tab == TabJoints))
	} else {
		parts = append(parts, headerMetaStyle.Render("Devices"))
	}

	return headerBarStyle.Width(m.width).Render(strings.Join(parts, ""))
}

func tabLabel(name string, active bool) string {
	if active {
		return headerTabActiveStyle.Render(name)
	}
	return headerTabStyle.Render(name)
}

// renderFooter produces the bottom status bar with keyboard hints.
func renderFooter(m *Model) string {
	var left, right string

	switch {
	case m.notice != "":
		right = renderHints([]hint{{"any key", "dismiss"}})
	case m.editingNotes:
		cursor := inputCursorStyle.Render(" ")
		left = inputBarStyle.Render(fmt.Sprintf("notes: %s%s", m.notesDraft, cursor))
		right = renderHints([]hint{
			{"enter", "save"},
			{"esc", "cancel"},
		})
	case m.screen == ScreenDevices:
		right = renderHints([]hint{
			{"↑↓", "navigate"},
			{"enter", "open"},
			{"r", "reload"},
			{"q", "quit"},
		})
	case m.tab == TabJoints:
		right = renderHints([]hint{
			{"↑↓", "joint"},
			{"r", "reload"},
			{"tab", "hand-eye"},
			{"esc", "back"},
		})
	default:
		right = renderHints([]hint{
			{"c", "camera"},
			{"i", "intrinsic"},
			{"p", "capture"},
			{"x", "remove"},
			{"s", "solve"},
			{"w", "save"},
			{"n", "notes"},
			{"tab", "joints"},
			{"esc", "back"},
		})
	}

	if left == "" && m.statusMsg != "" {
		left = statusStyle.Render(m.statusMsg)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return lipgloss.NewStyle().
		Background(colorBgSurface).
		Width(m.width).
		Render(bar)
}

type hint struct {
	key  string
	desc string
}

func renderHints(hints []hint) string {
	var parts []string
	for _, h := range hints {
		parts = append(parts,
			hintKeyStyle.Render(h.key)+" "+hintDescStyle.Render(h.desc))
	}
	return strings.Join(parts, hintDescStyle.Render("  "))
}

// renderNotice centers the blocking notice in the body area.
func renderNotice(m *Model, height int) string {
	box := noticeStyle.Render(
		noticeTitleStyle.Render("Cannot continue") + "\n\n" + m.notice)
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, box)
}
