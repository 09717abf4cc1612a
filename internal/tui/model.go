package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/Mr-Dark-debug/calibscope/internal/analysis"
	"github.com/Mr-Dark-debug/calibscope/internal/database"
	"github.com/Mr-Dark-debug/calibscope/internal/session"
	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

// ────────────────────────────────────────────────────────────
// Screens and tabs
// ────────────────────────────────────────────────────────────

// Screen is the top-level screen being shown.
type Screen int

const (
	ScreenDevices Screen = iota
	ScreenWorkspace
)

// Tab is the active view of the device workspace.
type Tab int

const (
	TabHandEye Tab = iota
	TabJoints
)

// ────────────────────────────────────────────────────────────
// Model
// ────────────────────────────────────────────────────────────

// Options wires the pose source and solver used by new sessions. Nil
// fields fall back to the session package placeholders.
type Options struct {
	Source session.PoseSource
	Solver session.Solver
}

// Model is the root BubbleTea model for the calibscope TUI.
// State is organized by concern; rendering is delegated
// to component functions in separate files.
type Model struct {
	store    database.Store
	analyzer *analysis.Analyzer
	opts     Options

	// Data
	devices  []*calibration.Device
	device   *calibration.Device
	session  *session.Controller
	state    session.State
	avail    []calibration.IntrinsicCalibration
	report   *analysis.DeviceReport
	lastSave *calibration.CalibrationRecord

	// UI state
	screen         Screen
	tab            Tab
	selectedDevice int
	selectedPose   int
	selectedJoint  int
	width          int
	height         int

	// Notes editing
	editingNotes bool
	notesDraft   string

	// notice is a blocking message dismissed by any key.
	notice string

	// Status
	statusMsg string
	err       error
}

// NewModel creates a new TUI model backed by the given store.
func NewModel(store database.Store, opts Options) Model {
	return Model{
		store:     store,
		analyzer:  analysis.NewAnalyzer(store),
		opts:      opts,
		statusMsg: "Loading devices...",
	}
}

// ────────────────────────────────────────────────────────────
// Messages
// ────────────────────────────────────────────────────────────

type devicesLoadedMsg []*calibration.Device
type workspaceLoadedMsg struct {
	device *calibration.Device
	index  calibration.IntrinsicIndex
}
type reportLoadedMsg struct {
	deviceID string
	report   *analysis.DeviceReport
}

// Session operation results carry the controller that produced them so
// results from an abandoned session can be dropped.
type poseCapturedMsg struct {
	ctrl *session.Controller
	pose calibration.PoseSample
	err  error
}
type solvedMsg struct {
	ctrl   *session.Controller
	result *calibration.CalibrationResult
	err    error
}
type savedMsg struct {
	ctrl   *session.Controller
	record *calibration.CalibrationRecord
	err    error
}
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// ────────────────────────────────────────────────────────────
// Init / commands
// ────────────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return m.loadDevices()
}

func (m Model) loadDevices() tea.Cmd {
	return func() tea.Msg {
		devices, err := m.store.ListDevices()
		if err != nil {
			return errMsg{err}
		}
		return devicesLoadedMsg(devices)
	}
}

func (m Model) loadWorkspace(d *calibration.Device) tea.Cmd {
	return func() tea.Msg {
		index, err := m.store.ListIntrinsics(d.ID)
		if err != nil {
			return errMsg{err}
		}
		return workspaceLoadedMsg{device: d, index: index}
	}
}

func (m Model) loadReport(deviceID string) tea.Cmd {
	return func() tea.Msg {
		report, err := m.analyzer.DeviceHistory(deviceID, 0)
		if err != nil {
			return errMsg{err}
		}
		return reportLoadedMsg{deviceID: deviceID, report: report}
	}
}

func capturePose(ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		pose, err := ctrl.CaptureOne(context.Background())
		return poseCapturedMsg{ctrl: ctrl, pose: pose, err: err}
	}
}

func solve(ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		result, err := ctrl.Solve(context.Background())
		return solvedMsg{ctrl: ctrl, result: result, err: err}
	}
}

func save(ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		record, err := ctrl.Save(context.Background())
		return savedMsg{ctrl: ctrl, record: record, err: err}
	}
}

// newSession builds the controller for a device. Saved records are
// persisted through the store.
func (m Model) newSession(d *calibration.Device, index calibration.IntrinsicIndex) *session.Controller {
	store := m.store
	return session.NewController(session.Options{
		Device:     d,
		Intrinsics: index,
		Camera:     calibration.CameraWrist,
		Solver:     m.opts.Solver,
		Source:     m.opts.Source,
		OnComplete: func(_ context.Context, record *calibration.CalibrationRecord) error {
			return store.InsertHandEyeRecord(record)
		},
	})
}

// refresh copies the session snapshot into the model.
func (m *Model) refresh() {
	if m.session == nil {
		return
	}
	m.state = m.session.Snapshot()
	m.avail = m.session.AvailableIntrinsics()
	m.selectedPose = clamp(m.selectedPose, 0, maxInt(len(m.state.Poses)-1, 0))
}

// ────────────────────────────────────────────────────────────
// Update
// ────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case devicesLoadedMsg:
		m.devices = []*calibration.Device(msg)
		m.selectedDevice = clamp(m.selectedDevice, 0, maxInt(len(m.devices)-1, 0))
		if len(m.devices) > 0 {
			m.statusMsg = fmt.Sprintf("%d devices", len(m.devices))
		} else {
			m.statusMsg = "No devices"
		}
		return m, nil

	case workspaceLoadedMsg:
		m.device = msg.device
		m.session = m.newSession(msg.device, msg.index)
		m.screen = ScreenWorkspace
		m.tab = TabHandEye
		m.report = nil
		m.lastSave = nil
		m.selectedPose = 0
		m.selectedJoint = 0
		m.refresh()
		m.autoSelectIntrinsic()
		m.statusMsg = fmt.Sprintf("%s  %s camera", m.device.Name, m.state.Camera)
		return m, m.loadReport(msg.device.ID)

	case reportLoadedMsg:
		if m.device == nil || msg.deviceID != m.device.ID {
			return m, nil
		}
		m.report = msg.report
		return m, nil

	case poseCapturedMsg:
		if msg.ctrl != m.session {
			return m, nil
		}
		m.refresh()
		if m.handleOpErr("capture", msg.err) {
			return m, nil
		}
		m.selectedPose = maxInt(len(m.state.Poses)-1, 0)
		m.statusMsg = fmt.Sprintf("Pose %d captured", len(m.state.Poses))
		return m, nil

	case solvedMsg:
		if msg.ctrl != m.session {
			return m, nil
		}
		m.refresh()
		if m.handleOpErr("calibration", msg.err) {
			return m, nil
		}
		m.statusMsg = fmt.Sprintf("Calibrated with %d poses, reprojection %.3f px",
			msg.result.PosesUsed, msg.result.ReprojectionError)
		return m, nil

	case savedMsg:
		if msg.ctrl != m.session {
			return m, nil
		}
		m.refresh()
		if m.handleOpErr("save", msg.err) {
			return m, nil
		}
		m.lastSave = msg.record
		m.selectedPose = 0
		m.statusMsg = fmt.Sprintf("Saved calibration %s", shortID(msg.record.ID, 8))
		return m, nil

	case errMsg:
		m.err = msg.err
		m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		return m, nil
	}

	return m, nil
}

// handleOpErr reports a failed session operation. Validation failures
// become a blocking notice; results of a reset session are dropped.
func (m *Model) handleOpErr(op string, err error) bool {
	if err == nil {
		return false
	}

	var verr *session.ValidationError
	switch {
	case errors.As(err, &verr):
		m.notice = verr.Msg
	case errors.Is(err, session.ErrSessionReset):
		m.statusMsg = fmt.Sprintf("Discarded %s from previous session", op)
	case errors.Is(err, session.ErrCaptureInProgress),
		errors.Is(err, session.ErrSolveInProgress),
		errors.Is(err, session.ErrSaveInProgress):
		m.statusMsg = fmt.Sprintf("%s already in progress", op)
	default:
		logrus.WithError(err).WithField("operation", op).Warn("session operation failed")
		m.err = err
		m.statusMsg = fmt.Sprintf("%s failed: %v", op, err)
	}
	return true
}

// autoSelectIntrinsic picks the only available intrinsic calibration.
func (m *Model) autoSelectIntrinsic() {
	if len(m.avail) != 1 || m.state.IntrinsicID != "" {
		return
	}
	if err := m.session.SelectIntrinsic(m.avail[0].ID); err == nil {
		m.refresh()
	}
}

// handleKey routes keyboard input based on current mode.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// ── Blocking notice swallows one key ──

	if m.notice != "" {
		if key == "ctrl+c" {
			return m, tea.Quit
		}
		m.notice = ""
		return m, nil
	}

	// ── Notes editing ──

	if m.editingNotes {
		return m.handleNotesKey(msg)
	}

	// ── Global ──

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.screen == ScreenWorkspace {
			m.screen = ScreenDevices
			m.session = nil
			m.device = nil
			m.statusMsg = fmt.Sprintf("%d devices", len(m.devices))
			return m, m.loadDevices()
		}
		return m, nil
	}

	if m.screen == ScreenDevices {
		return m.handleDeviceKey(key)
	}

	if key == "tab" {
		if m.tab == TabHandEye {
			m.tab = TabJoints
			return m, m.loadReport(m.device.ID)
		}
		m.tab = TabHandEye
		return m, nil
	}

	if m.tab == TabJoints {
		return m.handleStatsKey(key)
	}
	return m.handleSessionKey(key)
}

func (m Model) handleDeviceKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "j", "down":
		if m.selectedDevice < len(m.devices)-1 {
			m.selectedDevice++
		}
	case "k", "up":
		if m.selectedDevice > 0 {
			m.selectedDevice--
		}
	case "r":
		return m, m.loadDevices()
	case "enter":
		if m.selectedDevice < len(m.devices) {
			m.statusMsg = "Loading device..."
			return m, m.loadWorkspace(m.devices[m.selectedDevice])
		}
	}
	return m, nil
}

func (m Model) handleSessionKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "c":
		next := calibration.CameraFront
		if m.state.Camera == calibration.CameraFront {
			next = calibration.CameraWrist
		}
		if err := m.session.SelectCamera(next); err != nil {
			m.handleOpErr("camera switch", err)
			return m, nil
		}
		m.selectedPose = 0
		m.refresh()
		m.autoSelectIntrinsic()
		m.statusMsg = fmt.Sprintf("%s camera  %s", next, next.CalibrationType())

	case "i":
		if len(m.avail) == 0 {
			m.statusMsg = fmt.Sprintf("No intrinsic calibration for the %s camera", m.state.Camera)
			return m, nil
		}
		next := 0
		for i, ic := range m.avail {
			if ic.ID == m.state.IntrinsicID {
				next = (i + 1) % len(m.avail)
			}
		}
		if err := m.session.SelectIntrinsic(m.avail[next].ID); err != nil {
			m.handleOpErr("intrinsic selection", err)
			return m, nil
		}
		m.refresh()

	case "p", " ":
		m.refresh()
		switch {
		case m.state.Capturing:
			m.statusMsg = "Capture in progress"
			return m, nil
		case m.state.IntrinsicID == "":
			m.statusMsg = "Select an intrinsic calibration before capturing"
			return m, nil
		}
		m.state.Capturing = true
		m.statusMsg = "Capturing pose..."
		return m, capturePose(m.session)

	case "j", "down":
		if m.selectedPose < len(m.state.Poses)-1 {
			m.selectedPose++
		}

	case "k", "up":
		if m.selectedPose > 0 {
			m.selectedPose--
		}

	case "x", "delete", "backspace":
		if m.selectedPose >= 0 && m.selectedPose < len(m.state.Poses) {
			id := m.state.Poses[m.selectedPose].ID
			if m.session.RemovePose(id) {
				m.refresh()
				m.statusMsg = fmt.Sprintf("Removed pose %s", shortID(id, 8))
			}
		}

	case "s":
		m.refresh()
		if m.state.Solving {
			m.statusMsg = "Calibration in progress"
			return m, nil
		}
		m.state.Solving = true
		m.statusMsg = "Calibrating..."
		return m, solve(m.session)

	case "w":
		m.refresh()
		if m.state.Saving {
			m.statusMsg = "Save in progress"
			return m, nil
		}
		if m.state.Result == nil {
			m.statusMsg = "Nothing to save"
			return m, nil
		}
		m.state.Saving = true
		m.statusMsg = "Saving..."
		return m, save(m.session)

	case "n":
		m.editingNotes = true
		m.notesDraft = m.state.Notes
	}

	return m, nil
}

func (m Model) handleNotesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.session.SetNotes(m.notesDraft)
		m.editingNotes = false
		m.refresh()
	case tea.KeyEsc:
		m.editingNotes = false
	case tea.KeyBackspace:
		if r := []rune(m.notesDraft); len(r) > 0 {
			m.notesDraft = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.notesDraft += " "
	case tea.KeyRunes:
		m.notesDraft += string(msg.Runes)
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleStatsKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "j", "down":
		if m.selectedJoint < len(calibration.JointNames)-1 {
			m.selectedJoint++
		}
	case "k", "up":
		if m.selectedJoint > 0 {
			m.selectedJoint--
		}
	case "r":
		return m, m.loadReport(m.device.ID)
	}
	return m, nil
}

// ────────────────────────────────────────────────────────────
// View
// ────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	header := renderHeader(&m)
	footer := renderFooter(&m)

	bodyHeight := m.height - 2 // header + footer

	var body string
	switch {
	case m.notice != "":
		body = renderNotice(&m, bodyHeight)
	case m.screen == ScreenDevices:
		body = renderDeviceList(&m)
	case m.tab == TabJoints:
		body = renderStatsPanel(&m, m.width, bodyHeight)
	default:
		body = m.renderSessionLayout(bodyHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// renderSessionLayout places the pose list beside the result panel.
func (m Model) renderSessionLayout(totalHeight int) string {
	// Responsive: stack panels on narrow terminals
	if m.width < 80 {
		topHeight := totalHeight / 2
		return lipgloss.JoinVertical(lipgloss.Left,
			renderSessionPanel(&m, m.width, topHeight),
			renderResultPanel(&m, m.width, totalHeight-topHeight))
	}

	leftWidth := m.width * 50 / 100
	rightWidth := m.width - leftWidth

	left := renderSessionPanel(&m, leftWidth, totalHeight)
	right := renderResultPanel(&m, rightWidth, totalHeight)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}
