package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

// ────────────────────────────────────────────────────────────
// Numeric rendering
// ────────────────────────────────────────────────────────────

// formatVec renders a 3-vector with fixed precision.
func formatVec(v calibration.Vec3, prec int) string {
	return fmt.Sprintf("[%.*f, %.*f, %.*f]", prec, v[0], prec, v[1], prec, v[2])
}

// formatMatrix renders a 4x4 transform, one row per line.
func formatMatrix(m calibration.Mat4) []string {
	rows := make([]string, 0, 4)
	for _, r := range m {
		rows = append(rows, fmt.Sprintf("%9.4f %9.4f %9.4f %9.4f", r[0], r[1], r[2], r[3]))
	}
	return rows
}

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// sparkline maps values onto block characters scaled to their own range.
// A flat series renders at the lowest tick.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkTicks)-1))
		}
		b.WriteRune(sparkTicks[idx])
	}
	return b.String()
}

// renderBar draws a horizontal █/░ bar of width cells for value/total.
func renderBar(value, total float64, width int) (filled, empty string) {
	if width <= 0 {
		return "", ""
	}
	n := 0
	if total > 0 {
		n = int(math.Round(value / total * float64(width)))
	}
	n = clamp(n, 0, width)
	return strings.Repeat("█", n), strings.Repeat("░", width-n)
}

// ────────────────────────────────────────────────────────────
// String helpers
// ────────────────────────────────────────────────────────────

// truncate cuts a string to maxLen and appends "..." if truncated.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// shortID returns first n characters of an ID string.
func shortID(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[:n]
}

// clamp restricts val to [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// visibleRange returns the [start, end) window of a scrolling list that
// keeps selected on screen.
func visibleRange(selected, total, maxVisible int) (int, int) {
	if maxVisible < 1 {
		maxVisible = 1
	}
	start := 0
	if selected >= maxVisible {
		start = selected - maxVisible + 1
	}
	end := start + maxVisible
	if end > total {
		end = total
	}
	return start, end
}
