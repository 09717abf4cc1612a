package tui

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Mr-Dark-debug/calibscope/internal/database"
	"github.com/Mr-Dark-debug/calibscope/internal/session"
	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

func newTestModel(t *testing.T) (Model, *database.DBService) {
	t.Helper()
	return newTestModelWith(t, Options{
		Source: session.NewPlaceholderPoseSource(0, rand.New(rand.NewSource(7))),
		Solver: session.NewPlaceholderSolver(0, rand.New(rand.NewSource(7))),
	})
}

func newTestModelWith(t *testing.T, opts Options) (Model, *database.DBService) {
	t.Helper()
	svc, err := database.NewDBService(":memory:")
	if err != nil {
		t.Fatalf("NewDBService failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	if err := svc.UpsertDevice(&calibration.Device{ID: "so101-a", Name: "Left arm", Model: "SO-101"}); err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}
	if err := svc.InsertIntrinsic(&calibration.IntrinsicCalibration{
		ID:             "intr-wrist",
		DeviceID:       "so101-a",
		Camera:         calibration.CameraWrist,
		FocalLength:    [2]float64{600, 600},
		PrincipalPoint: [2]float64{320, 240},
	}); err != nil {
		t.Fatalf("InsertIntrinsic failed: %v", err)
	}

	m := NewModel(svc, opts)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return run(t, m, m.Init()), svc
}

// update applies one message and runs any resulting command chain.
func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	return run(t, next.(Model), cmd)
}

func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 10 {
			t.Fatal("command chain did not settle")
		}
		next, c := m.Update(cmd())
		m, cmd = next.(Model), c
	}
	return m
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	return update(t, m, keyMsg(key))
}

// pressHeld applies a key but returns its command unexecuted, leaving the
// operation in flight.
func pressHeld(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(keyMsg(key))
	if cmd == nil {
		t.Fatalf("expected %q to start an operation", key)
	}
	return next.(Model), cmd
}

// gatedSource blocks each capture until release is closed.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
	inner   session.PoseSource
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
		inner:   session.NewPlaceholderPoseSource(0, rand.New(rand.NewSource(3))),
	}
}

func (g *gatedSource) Capture(ctx context.Context) (calibration.PoseSample, error) {
	g.started <- struct{}{}
	<-g.release
	return g.inner.Capture(ctx)
}

func TestDeviceListLoads(t *testing.T) {
	m, _ := newTestModel(t)

	if len(m.devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(m.devices))
	}
	if view := m.View(); !strings.Contains(view, "Left arm") {
		t.Errorf("device list missing device name:\n%s", view)
	}
}

func TestOpenWorkspaceSelectsOnlyIntrinsic(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, "enter")

	if m.screen != ScreenWorkspace || m.session == nil {
		t.Fatalf("expected workspace with a session, got screen %d", m.screen)
	}
	if m.state.IntrinsicID != "intr-wrist" {
		t.Errorf("expected intrinsic auto-selected, got %q", m.state.IntrinsicID)
	}
	if !m.session.CanCapture() {
		t.Error("expected capture to be enabled")
	}
}

func TestSolveWithTooFewPosesShowsNotice(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, "enter")
	m = press(t, m, "p")
	m = press(t, m, "s")

	want := "At least 10 poses are required for calibration (have 1)."
	if m.notice != want {
		t.Fatalf("expected notice %q, got %q", want, m.notice)
	}
	if !strings.Contains(m.View(), want) {
		t.Error("notice not rendered")
	}

	// Any key dismisses without acting on it.
	m = press(t, m, "p")
	if m.notice != "" {
		t.Error("notice not dismissed")
	}
	if len(m.state.Poses) != 1 {
		t.Errorf("dismiss key should not capture, have %d poses", len(m.state.Poses))
	}
}

func TestCaptureSolveSave(t *testing.T) {
	m, svc := newTestModel(t)
	m = press(t, m, "enter")

	for i := 0; i < session.MinPoses+1; i++ {
		m = press(t, m, "p")
	}
	if len(m.state.Poses) != session.MinPoses+1 {
		t.Fatalf("expected %d poses, got %d", session.MinPoses+1, len(m.state.Poses))
	}

	// Drop the selected (last) pose.
	m = press(t, m, "x")
	if len(m.state.Poses) != session.MinPoses {
		t.Fatalf("expected %d poses after remove, got %d", session.MinPoses, len(m.state.Poses))
	}

	m = press(t, m, "n")
	for _, k := range []string{"t", "e", "s", "t", " ", "1"} {
		m = press(t, m, k)
	}
	m = press(t, m, "enter")
	if m.state.Notes != "test 1" {
		t.Errorf("expected notes %q, got %q", "test 1", m.state.Notes)
	}

	m = press(t, m, "s")
	if m.state.Result == nil {
		t.Fatalf("expected a result, status %q", m.statusMsg)
	}
	if m.state.Result.PosesUsed != session.MinPoses {
		t.Errorf("expected PosesUsed=%d, got %d", session.MinPoses, m.state.Result.PosesUsed)
	}
	if !strings.Contains(m.View(), "Reprojection") {
		t.Error("result panel not rendered")
	}

	m = press(t, m, "w")
	if m.lastSave == nil {
		t.Fatalf("expected saved record, status %q", m.statusMsg)
	}
	if len(m.state.Poses) != 0 || m.state.Result != nil {
		t.Error("session should be cleared after save")
	}

	records, err := svc.QueryHandEyeRecords(database.HandEyeFilter{DeviceID: "so101-a"})
	if err != nil {
		t.Fatalf("QueryHandEyeRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(records))
	}
	if records[0].Notes != "test 1" || records[0].PosesCount != session.MinPoses {
		t.Errorf("unexpected stored record: notes=%q poses=%d", records[0].Notes, records[0].PosesCount)
	}
}

func TestCameraSwitchResetsSession(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, "enter")
	m = press(t, m, "p")

	m = press(t, m, "c")
	if m.state.Camera != calibration.CameraFront || m.state.Type != calibration.TypeEyeToHand {
		t.Fatalf("expected front/eye-to-hand, got %s/%s", m.state.Camera, m.state.Type)
	}
	if len(m.state.Poses) != 0 || m.state.IntrinsicID != "" {
		t.Error("camera switch should clear poses and intrinsic")
	}
	if m.session.CanCapture() {
		t.Error("front camera has no intrinsic, capture should be disabled")
	}

	m = press(t, m, "c")
	if m.state.IntrinsicID != "intr-wrist" {
		t.Errorf("expected wrist intrinsic re-selected, got %q", m.state.IntrinsicID)
	}
}

func TestJointsTab(t *testing.T) {
	m, svc := newTestModel(t)
	m = press(t, m, "enter")
	m = press(t, m, "tab")

	if m.tab != TabJoints {
		t.Fatal("expected joints tab")
	}
	if m.report == nil || !m.report.NoData {
		t.Fatal("expected an empty report")
	}
	if !strings.Contains(m.View(), "No calibration data") {
		t.Error("empty state not rendered")
	}

	for _, off := range []float64{2040, 2048, 2056} {
		data := make(map[string]calibration.JointCalibration)
		for _, j := range calibration.JointNames {
			data[j] = calibration.JointCalibration{HomingOffset: off}
		}
		if err := svc.InsertJointCalibration(&calibration.JointCalibrationRecord{
			DeviceID:        "so101-a",
			CalibrationData: data,
		}); err != nil {
			t.Fatalf("InsertJointCalibration failed: %v", err)
		}
	}

	m = press(t, m, "r")
	if m.report.NoData {
		t.Fatal("expected data after reload")
	}
	js, ok := m.report.Joints.Joint(calibration.JointElbowFlex)
	if !ok || js.Samples != 3 || js.Mean != 2048 {
		t.Errorf("unexpected elbow stats: %+v", js)
	}

	view := m.View()
	for _, want := range []string{"Joint Calibration", "elbow_flex", "Range / Std"} {
		if !strings.Contains(view, want) {
			t.Errorf("stats view missing %q", want)
		}
	}

	m = press(t, m, "esc")
	if m.screen != ScreenDevices {
		t.Error("esc should return to the device list")
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline(nil); got != "" {
		t.Errorf("expected empty sparkline, got %q", got)
	}
	if got := sparkline([]float64{5, 5, 5}); got != "▁▁▁" {
		t.Errorf("flat series: got %q", got)
	}
	if got := sparkline([]float64{0, 7, 14}); got != "▁▄█" {
		t.Errorf("ramp: got %q", got)
	}
}

func TestRenderBar(t *testing.T) {
	filled, empty := renderBar(5, 10, 10)
	if filled != strings.Repeat("█", 5) || empty != strings.Repeat("░", 5) {
		t.Errorf("half bar: %q %q", filled, empty)
	}
	filled, empty = renderBar(3, 0, 4)
	if filled != "" || empty != "░░░░" {
		t.Errorf("zero total: %q %q", filled, empty)
	}
}

func TestResultsFromClosedWorkspaceAreDropped(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, "enter")

	old := m.session
	m, capture := pressHeld(t, m, "p")
	m = press(t, m, "esc")
	m = press(t, m, "enter")
	if m.session == old {
		t.Fatal("expected a fresh session after reopening the workspace")
	}

	m = update(t, m, capture())
	if len(m.state.Poses) != 0 || m.selectedPose != 0 {
		t.Errorf("stale capture leaked into new session: poses=%d selected=%d", len(m.state.Poses), m.selectedPose)
	}
	if m.state.Capturing {
		t.Error("new session should not report a capture in flight")
	}

	// Removing with an empty pose list is a no-op.
	m = press(t, m, "x")
	if len(m.state.Poses) != 0 {
		t.Errorf("expected no poses, got %d", len(m.state.Poses))
	}
}

func TestCameraSwitchDuringCapture(t *testing.T) {
	src := newGatedSource()
	m, _ := newTestModelWith(t, Options{
		Source: src,
		Solver: session.NewPlaceholderSolver(0, rand.New(rand.NewSource(7))),
	})
	m = press(t, m, "enter")

	m, capture := pressHeld(t, m, "p")
	done := make(chan tea.Msg, 1)
	go func() { done <- capture() }()
	<-src.started

	m = press(t, m, "c")
	m = press(t, m, "c")
	if m.state.Camera != calibration.CameraWrist || m.state.IntrinsicID != "intr-wrist" {
		t.Fatalf("expected wrist camera with intrinsic, got %s/%q", m.state.Camera, m.state.IntrinsicID)
	}
	if !m.state.Capturing {
		t.Fatal("expected the abandoned capture to still be reported in flight")
	}

	m = press(t, m, "p")
	if m.statusMsg != "Capture in progress" {
		t.Errorf("unexpected status while capture in flight: %q", m.statusMsg)
	}

	close(src.release)
	m = update(t, m, <-done)
	if m.state.Capturing || len(m.state.Poses) != 0 {
		t.Errorf("discarded capture should leave an idle, empty session: capturing=%v poses=%d",
			m.state.Capturing, len(m.state.Poses))
	}

	m = press(t, m, "p")
	if len(m.state.Poses) != 1 {
		t.Errorf("expected capture to work again, have %d poses", len(m.state.Poses))
	}
}
