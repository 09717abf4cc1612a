package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Mr-Dark-debug/calibscope/pkg/timeutil"
)

// renderDeviceList renders the device selection screen.
func renderDeviceList(m *Model) string {
	if len(m.devices) == 0 {
		empty := emptyStateStyle.Render(
			"No devices registered.\n\n" +
				"Add one with `calibscope devices add <name>`,\n" +
				"then press r to reload.")
		return lipgloss.Place(
			m.width,
			m.height-2, // minus header + footer
			lipgloss.Center,
			lipgloss.Center,
			empty,
		)
	}

	title := panelTitleStyle.Render("Devices")
	count := dimStyle.Render(fmt.Sprintf("  %d total", len(m.devices)))

	lines := []string{title + count, ""}

	maxVisible := m.height - 6
	if maxVisible < 5 {
		maxVisible = 5
	}
	start, end := visibleRange(m.selectedDevice, len(m.devices), maxVisible)

	for i := start; i < end; i++ {
		d := m.devices[i]

		model := d.Model
		if model == "" {
			model = "-"
		}
		content := fmt.Sprintf("%s  %s  %s  %s",
			d.Name,
			dimStyle.Render(model),
			dimStyle.Render(shortID(d.ID, 10)),
			dimStyle.Render(timeutil.RelativeTime(d.CreatedAt)))

		style := itemStyle
		if i == m.selectedDevice {
			style = itemSelectedStyle
		}
		lines = append(lines, style.Width(m.width-4).Render(content))
	}

	return strings.Join(lines, "\n")
}
