package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mr-Dark-debug/calibscope/internal/database"
	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *database.DBService) {
	t.Helper()
	db, err := database.NewDBService(":memory:")
	if err != nil {
		t.Fatalf("NewDBService failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.UpsertDevice(&calibration.Device{ID: "so101", Name: "Left arm", Model: "SO-101"}); err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.CaptureDelay = 0
	cfg.SolveDelay = 0
	return New(cfg, db), db
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func TestHealthAndDevices(t *testing.T) {
	s, _ := newTestServer(t)

	expectStatus(t, do(t, s, http.MethodGet, "/health", ""), http.StatusOK)

	w := do(t, s, http.MethodGet, "/api/devices", "")
	expectStatus(t, w, http.StatusOK)
	var devices []calibration.Device
	decode(t, w, &devices)
	if len(devices) != 1 || devices[0].ID != "so101" {
		t.Errorf("unexpected devices %+v", devices)
	}

	expectStatus(t, do(t, s, http.MethodGet, "/api/devices/ghost/joints", ""), http.StatusNotFound)
}

func TestJointImportAndStats(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/devices/so101/joints/stats", "")
	expectStatus(t, w, http.StatusOK)
	var empty map[string]interface{}
	decode(t, w, &empty)
	if empty["noData"] != true {
		t.Errorf("expected noData for empty history, got %v", empty)
	}

	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	var batch []string
	for i, off := range []int{10, 20, 30} {
		batch = append(batch, fmt.Sprintf(
			`{"createdAt":%q,"calibrationData":{"shoulder_pan":{"homingOffset":%d}}}`,
			base.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), off))
	}
	w = do(t, s, http.MethodPost, "/api/devices/so101/joints", "["+strings.Join(batch, ",")+"]")
	expectStatus(t, w, http.StatusCreated)

	w = do(t, s, http.MethodPost, "/api/devices/so101/joints", `{"gripper":{"range_min":1}}`)
	expectStatus(t, w, http.StatusBadRequest)

	w = do(t, s, http.MethodGet, "/api/devices/so101/joints?limit=2", "")
	expectStatus(t, w, http.StatusOK)
	var records []calibration.JointCalibrationRecord
	decode(t, w, &records)
	if len(records) != 2 || records[0].DeviceID != "so101" {
		t.Fatalf("unexpected joint listing %+v", records)
	}

	w = do(t, s, http.MethodGet, "/api/devices/so101/joints/stats", "")
	expectStatus(t, w, http.StatusOK)
	var report struct {
		NoData bool `json:"noData"`
		Joints struct {
			Calibrations int `json:"calibrations"`
			Joints       []struct {
				Joint string  `json:"joint"`
				Mean  float64 `json:"mean"`
				Range float64 `json:"range"`
			} `json:"joints"`
		} `json:"joints"`
	}
	decode(t, w, &report)
	if report.NoData || report.Joints.Calibrations != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	pan := report.Joints.Joints[0]
	if pan.Joint != calibration.JointShoulderPan || pan.Mean != 20 || pan.Range != 20 {
		t.Errorf("unexpected shoulder_pan stats %+v", pan)
	}

	expectStatus(t, do(t, s, http.MethodGet, "/api/devices/so101/joints?limit=x", ""), http.StatusBadRequest)

	if m := s.Metrics(); m.JointsImported != 3 {
		t.Errorf("expected 3 imported joints, got %d", m.JointsImported)
	}
}

func TestHandEyeRecords(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"camera":"front","notes":"manual","posesCount":12,"posesUsed":12,"reprojectionError":0.2,
		"transformationMatrix":[[1,0,0,1],[0,1,0,2],[0,0,1,3],[0,0,0,1]],
		"translation":[1,2,3],"rotationEuler":[0,0,0]}`
	w := do(t, s, http.MethodPost, "/api/devices/so101/handeye", body)
	expectStatus(t, w, http.StatusCreated)
	var created calibration.CalibrationRecord
	decode(t, w, &created)
	if created.ID == "" || created.Type != calibration.TypeEyeToHand || created.DeviceID != "so101" {
		t.Errorf("unexpected created record %+v", created)
	}

	expectStatus(t, do(t, s, http.MethodPost, "/api/devices/so101/handeye", `{"camera":"side"}`), http.StatusBadRequest)

	// Structurally impossible results are rejected.
	const identity = `[[1,0,0,0],[0,1,0,0],[0,0,1,0],[0,0,0,1]]`
	for name, bad := range map[string]string{
		"missing matrix": `{"camera":"front","posesUsed":12,"reprojectionError":0.2}`,
		"bad last row":   `{"camera":"front","posesUsed":12,"reprojectionError":0.2,"transformationMatrix":[[1,0,0,0],[0,1,0,0],[0,0,1,0],[9,9,9,9]]}`,
		"negative error": `{"camera":"front","posesUsed":12,"reprojectionError":-3.5,"transformationMatrix":` + identity + `}`,
		"negative poses": `{"camera":"front","posesUsed":-2,"reprojectionError":0.2,"transformationMatrix":` + identity + `}`,
		"negative count": `{"camera":"front","posesUsed":12,"posesCount":-1,"reprojectionError":0.2,"transformationMatrix":` + identity + `}`,
	} {
		if w := do(t, s, http.MethodPost, "/api/devices/so101/handeye", bad); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", name, w.Code, w.Body.String())
		}
	}
	w = do(t, s, http.MethodGet, "/api/devices/so101/handeye", "")
	var all []calibration.CalibrationRecord
	decode(t, w, &all)
	if len(all) != 1 {
		t.Errorf("expected only the valid record stored, got %d", len(all))
	}
	expectStatus(t, do(t, s, http.MethodPost, "/api/devices/so101/handeye",
		`{"camera":"wrist","type":"eye-to-hand"}`), http.StatusBadRequest)

	w = do(t, s, http.MethodGet, "/api/devices/so101/handeye/"+created.ID, "")
	expectStatus(t, w, http.StatusOK)
	var got calibration.CalibrationRecord
	decode(t, w, &got)
	if got.Translation != (calibration.Vec3{1, 2, 3}) || got.Notes != "manual" {
		t.Errorf("unexpected record %+v", got)
	}

	w = do(t, s, http.MethodGet, "/api/devices/so101/handeye?camera=wrist", "")
	expectStatus(t, w, http.StatusOK)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected no wrist records, got %s", w.Body.String())
	}

	expectStatus(t, do(t, s, http.MethodGet, "/api/devices/so101/handeye/missing", ""), http.StatusNotFound)
}

func TestSessionFlow(t *testing.T) {
	s, db := newTestServer(t)

	intr := &calibration.IntrinsicCalibration{
		DeviceID:       "so101",
		Camera:         calibration.CameraWrist,
		FocalLength:    [2]float64{600, 600},
		PrincipalPoint: [2]float64{320, 240},
	}
	if err := db.InsertIntrinsic(intr); err != nil {
		t.Fatalf("InsertIntrinsic failed: %v", err)
	}

	w := do(t, s, http.MethodPost, "/api/devices/so101/session", `{"camera":"wrist"}`)
	expectStatus(t, w, http.StatusCreated)
	var view sessionView
	decode(t, w, &view)
	if view.Type != calibration.TypeEyeInHand || len(view.Intrinsics) != 1 || view.CanCapture {
		t.Fatalf("unexpected new session %+v", view)
	}

	// Capture is refused until an intrinsic is chosen.
	expectStatus(t, do(t, s, http.MethodPost, "/api/devices/so101/session/poses", ""), http.StatusConflict)
	expectStatus(t, do(t, s, http.MethodPut, "/api/devices/so101/session/intrinsic", `{"id":"nope"}`), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPut, "/api/devices/so101/session/intrinsic",
		fmt.Sprintf(`{"id":%q}`, intr.ID)), http.StatusOK)

	var poseIDs []string
	for i := 0; i < 10; i++ {
		w := do(t, s, http.MethodPost, "/api/devices/so101/session/poses", "")
		expectStatus(t, w, http.StatusCreated)
		var p calibration.PoseSample
		decode(t, w, &p)
		poseIDs = append(poseIDs, p.ID)
	}

	expectStatus(t, do(t, s, http.MethodDelete, "/api/devices/so101/session/poses/"+poseIDs[3], ""), http.StatusNoContent)
	expectStatus(t, do(t, s, http.MethodDelete, "/api/devices/so101/session/poses/"+poseIDs[3], ""), http.StatusNotFound)

	w = do(t, s, http.MethodPost, "/api/devices/so101/session/solve", "")
	expectStatus(t, w, http.StatusUnprocessableEntity)
	if !strings.Contains(w.Body.String(), "At least 10 poses") {
		t.Errorf("expected min-pose notice, got %s", w.Body.String())
	}

	expectStatus(t, do(t, s, http.MethodPost, "/api/devices/so101/session/poses", ""), http.StatusCreated)

	w = do(t, s, http.MethodPost, "/api/devices/so101/session/solve", "")
	expectStatus(t, w, http.StatusOK)
	var result calibration.CalibrationResult
	decode(t, w, &result)
	if result.PosesUsed != 10 {
		t.Errorf("expected PosesUsed=10, got %d", result.PosesUsed)
	}

	expectStatus(t, do(t, s, http.MethodPut, "/api/devices/so101/session/notes", `{"notes":"after gripper swap"}`), http.StatusOK)

	w = do(t, s, http.MethodPost, "/api/devices/so101/session/save", "")
	expectStatus(t, w, http.StatusCreated)
	var saved calibration.CalibrationRecord
	decode(t, w, &saved)
	if saved.Notes != "after gripper swap" || saved.PosesCount != 10 || saved.IntrinsicID != intr.ID {
		t.Errorf("unexpected saved record %+v", saved)
	}

	stored, err := db.GetHandEyeRecord(saved.ID)
	if err != nil {
		t.Fatalf("saved record not persisted: %v", err)
	}
	if stored.ReprojectionError != result.ReprojectionError {
		t.Errorf("persisted result differs: %+v", stored)
	}

	w = do(t, s, http.MethodGet, "/api/devices/so101/session", "")
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &view)
	if len(view.Poses) != 0 || view.Result != nil || view.Notes != "" || view.IntrinsicID != intr.ID {
		t.Errorf("expected cleared session keeping the intrinsic, got %+v", view)
	}

	// Nothing left to save.
	expectStatus(t, do(t, s, http.MethodPost, "/api/devices/so101/session/save", ""), http.StatusConflict)

	w = do(t, s, http.MethodPut, "/api/devices/so101/session/camera", `{"camera":"front"}`)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &view)
	if view.Type != calibration.TypeEyeToHand || view.IntrinsicID != "" || len(view.Intrinsics) != 0 {
		t.Errorf("unexpected session after camera switch %+v", view)
	}
	expectStatus(t, do(t, s, http.MethodPut, "/api/devices/so101/session/camera", `{"camera":"top"}`), http.StatusBadRequest)
}

func TestStartStop(t *testing.T) {
	db, err := database.NewDBService(":memory:")
	if err != nil {
		t.Fatalf("NewDBService failed: %v", err)
	}
	defer db.Close()

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	s := New(cfg, db)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "calibscope_requests_total 1") {
		t.Errorf("unexpected metrics body %q", body)
	}

	cancel()
	if err := s.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if _, err := http.Get("http://" + s.Addr() + "/health"); err == nil {
		t.Error("expected connection error after Stop")
	}
}
