package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Mr-Dark-debug/calibscope/internal/analysis"
	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

// renderStatsPanel renders the joint calibration statistics view: a
// per-joint table, range/std comparison bars and a drift sparkline for
// the selected joint.
func renderStatsPanel(m *Model, width, height int) string {
	if m.report == nil {
		return panelStyle.Width(width).Height(height).Render(dimStyle.Render("Loading..."))
	}
	if m.report.NoData || m.report.Joints == nil {
		empty := emptyStateStyle.Render(
			"No calibration data.\n\n" +
				"Import joint calibrations with\n" +
				"`calibscope joints import <file>`.")
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, empty)
	}

	report := m.report.Joints
	var lines []string

	lines = append(lines, panelTitleStyle.Render("Joint Calibration")+
		dimStyle.Render(fmt.Sprintf("  %d calibrations", report.Calibrations)))
	lines = append(lines, "")

	compact := width < 60
	if compact {
		lines = append(lines, tableHeadStyle.Render(fmt.Sprintf("  %-14s %9s %8s", "joint", "mean", "std")))
	} else {
		lines = append(lines, tableHeadStyle.Render(fmt.Sprintf("  %-14s %9s %8s %8s %8s %10s",
			"joint", "mean", "std", "range", "std°", "err@330mm")))
	}

	maxRange, maxStd := 0.0, 0.0
	for _, js := range report.Joints {
		if js.Range > maxRange {
			maxRange = js.Range
		}
		if js.Std > maxStd {
			maxStd = js.Std
		}
	}

	for i, js := range report.Joints {
		var row string
		switch {
		case js.Samples == 0:
			row = fmt.Sprintf("  %-14s %s", js.Joint, disabledStyle.Render("no samples"))
		case compact:
			row = fmt.Sprintf("  %-14s %9.1f %8.2f", js.Joint, js.Mean, js.Std)
		default:
			row = fmt.Sprintf("  %-14s %9.1f %8.2f %8.1f %8.3f %10.3f",
				js.Joint, js.Mean, js.Std, js.Range, js.StdDeg, js.Error330mm)
		}
		if js.Trend.Drifting {
			row += warnStyle.Render(" ⚠")
		}
		style := itemStyle
		if i == m.selectedJoint {
			style = itemSelectedStyle
		}
		lines = append(lines, style.Width(width-4).Render(row))
	}

	if !compact {
		barWidth := clamp(width-32, 10, 40)
		lines = append(lines, "")
		lines = append(lines, panelTitleStyle.Render("Range / Std"))
		for _, js := range report.Joints {
			rf, re := renderBar(js.Range, maxRange, barWidth)
			sf, se := renderBar(js.Std, maxStd, barWidth)
			lines = append(lines,
				fmt.Sprintf("  %-14s %s%s", js.Joint, barRangeStyle.Render(rf), barEmptyStyle.Render(re)),
				fmt.Sprintf("  %-14s %s%s", "", barStdStyle.Render(sf), barEmptyStyle.Render(se)))
		}
	}

	if m.selectedJoint < len(calibration.JointNames) {
		lines = append(lines, "")
		lines = append(lines, renderDrift(report, calibration.JointNames[m.selectedJoint], width))
	}

	for _, w := range m.report.Warnings {
		lines = append(lines, warnStyle.Render(truncate(w, width-4)))
	}

	return panelStyle.Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

// renderDrift draws the homing offset history of one joint.
func renderDrift(report *analysis.JointReport, joint string, width int) string {
	var values []float64
	for _, row := range report.TimeSeries {
		if v, ok := row.Values[joint]; ok {
			values = append(values, v)
		}
	}
	if len(values) > width-24 && width > 24 {
		values = values[len(values)-(width-24):]
	}

	js, _ := report.Joint(joint)
	style := sparkStyle
	if js.Trend.Drifting {
		style = sparkDriftStyle
	}
	trend := dimStyle.Render(fmt.Sprintf("  %+.2f steps/cal", js.Trend.Slope))
	return labelStyle.Render(fmt.Sprintf("%-14s ", joint)) + style.Render(sparkline(values)) + trend
}
