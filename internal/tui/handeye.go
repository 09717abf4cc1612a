package tui

import (
	"fmt"
	"strings"

	"github.com/Mr-Dark-debug/calibscope/internal/session"
	"github.com/Mr-Dark-debug/calibscope/pkg/timeutil"
)

// renderSessionPanel shows the session setup and the captured poses.
func renderSessionPanel(m *Model, width, height int) string {
	st := m.state
	var lines []string

	lines = append(lines, panelTitleStyle.Render("Session"))
	lines = append(lines, field("Camera", string(st.Camera)+"  "+dimStyle.Render(string(st.Type))))

	switch {
	case len(m.avail) == 0:
		lines = append(lines, field("Intrinsic", warnStyle.Render("none available for this camera")))
	case st.IntrinsicID == "":
		lines = append(lines, field("Intrinsic", busyStyle.Render(fmt.Sprintf("select one (%d available)", len(m.avail)))))
	default:
		lines = append(lines, field("Intrinsic", shortID(st.IntrinsicID, 12)))
	}

	notes := st.Notes
	if notes == "" {
		notes = dimStyle.Render("-")
	}
	lines = append(lines, field("Notes", truncate(notes, width-14)))
	lines = append(lines, "")

	// Pose progress
	progress := fmt.Sprintf("%d/%d poses", len(st.Poses), session.MinPoses)
	if len(st.Poses) >= session.MinPoses {
		progress = okStyle.Render(progress)
	} else {
		progress = busyStyle.Render(progress)
	}
	action := ""
	switch {
	case m.state.Capturing:
		action = busyStyle.Render("  capturing...")
	case !m.session.CanCapture():
		action = disabledStyle.Render("  capture disabled")
	}
	lines = append(lines, progress+action)
	lines = append(lines, sectionStyle.Render(strings.Repeat("─", maxInt(width-4, 0))))

	if len(st.Poses) == 0 {
		lines = append(lines, dimStyle.Render("No poses captured. Press p to capture."))
	} else {
		maxVisible := height - len(lines) - 2
		start, end := visibleRange(m.selectedPose, len(st.Poses), maxVisible)
		for i := start; i < end; i++ {
			p := st.Poses[i]
			content := fmt.Sprintf("%2d  %s  %s",
				i+1,
				formatVec(p.RobotPose.Position, 1),
				dimStyle.Render(timeutil.FormatTimestampFull(p.CapturedAt)))
			style := itemStyle
			if i == m.selectedPose {
				style = itemSelectedStyle
			}
			lines = append(lines, style.Width(width-4).Render(truncate(content, width-6)))
		}
	}

	return panelStyle.Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

// renderResultPanel shows the solved transform, or what is still needed.
func renderResultPanel(m *Model, width, height int) string {
	st := m.state
	var lines []string

	lines = append(lines, panelTitleStyle.Render("Calibration"))

	switch {
	case m.state.Solving:
		lines = append(lines, busyStyle.Render("Calibrating..."))
	case st.Result == nil && m.lastSave != nil:
		lines = append(lines, okStyle.Render("Saved "+shortID(m.lastSave.ID, 8)))
		lines = append(lines, dimStyle.Render(fmt.Sprintf("%d poses, reprojection %.3f px",
			m.lastSave.PosesCount, m.lastSave.ReprojectionError)))
	case st.Result == nil:
		if remaining := session.MinPoses - len(st.Poses); remaining > 0 {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("Capture %d more poses to calibrate.", remaining)))
		} else {
			lines = append(lines, dimStyle.Render("Press s to calibrate."))
		}
	default:
		r := st.Result
		lines = append(lines, field("Translation", formatVec(r.Translation, 2)+dimStyle.Render(" mm")))
		lines = append(lines, field("Rotation", formatVec(r.RotationEuler, 2)+dimStyle.Render(" deg")))
		lines = append(lines, field("Reprojection", fmt.Sprintf("%.3f px", r.ReprojectionError)))
		lines = append(lines, field("Poses used", fmt.Sprintf("%d", r.PosesUsed)))
		lines = append(lines, "")
		for _, row := range formatMatrix(r.TransformationMatrix) {
			lines = append(lines, matrixStyle.Render(row))
		}
		lines = append(lines, "")
		if m.state.Saving {
			lines = append(lines, busyStyle.Render("Saving..."))
		} else {
			lines = append(lines, dimStyle.Render("Press w to save."))
		}
	}

	return panelStyle.Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func field(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-13s", label)) + valueStyle.Render(value)
}
