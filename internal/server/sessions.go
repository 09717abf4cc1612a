package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/Mr-Dark-debug/calibscope/internal/session"
	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

// sessionView is the JSON form of a session snapshot.
type sessionView struct {
	DeviceID    string                             `json:"deviceId"`
	Camera      calibration.Camera                 `json:"camera"`
	Type        calibration.Type                   `json:"type"`
	IntrinsicID string                             `json:"intrinsicId"`
	Intrinsics  []calibration.IntrinsicCalibration `json:"intrinsics"`
	Poses       []calibration.PoseSample           `json:"poses"`
	MinPoses    int                                `json:"minPoses"`
	CanCapture  bool                               `json:"canCapture"`
	CanSolve    bool                               `json:"canSolve"`
	Capturing   bool                               `json:"capturing"`
	Solving     bool                               `json:"solving"`
	Saving      bool                               `json:"saving"`
	Result      *calibration.CalibrationResult     `json:"result"`
	Notes       string                             `json:"notes"`
}

func viewOf(ctrl *session.Controller) sessionView {
	st := ctrl.Snapshot()
	v := sessionView{
		Camera:      st.Camera,
		Type:        st.Type,
		IntrinsicID: st.IntrinsicID,
		Intrinsics:  ctrl.AvailableIntrinsics(),
		Poses:       st.Poses,
		MinPoses:    session.MinPoses,
		CanCapture:  ctrl.CanCapture(),
		CanSolve:    ctrl.CanSolve(),
		Capturing:   st.Capturing,
		Solving:     st.Solving,
		Saving:      st.Saving,
		Result:      st.Result,
		Notes:       st.Notes,
	}
	if st.Device != nil {
		v.DeviceID = st.Device.ID
	}
	if v.Intrinsics == nil {
		v.Intrinsics = []calibration.IntrinsicCalibration{}
	}
	if v.Poses == nil {
		v.Poses = []calibration.PoseSample{}
	}
	return v
}

// sessionStatus maps session errors to HTTP status codes.
func sessionStatus(err error) int {
	var verr *session.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrUnknownCamera),
		errors.Is(err, session.ErrUnknownIntrinsic):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoDevice),
		errors.Is(err, session.ErrNoIntrinsic),
		errors.Is(err, session.ErrNoResult),
		errors.Is(err, session.ErrCaptureInProgress),
		errors.Is(err, session.ErrSolveInProgress),
		errors.Is(err, session.ErrSaveInProgress),
		errors.Is(err, session.ErrSessionReset):
		return http.StatusConflict
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// buildSession creates a controller for d with a fresh intrinsic index.
// Saved records go straight to the store.
func (s *Server) buildSession(d *calibration.Device, camera calibration.Camera) (*session.Controller, error) {
	index, err := s.store.ListIntrinsics(d.ID)
	if err != nil {
		return nil, err
	}

	return session.NewController(session.Options{
		Device:     d,
		Intrinsics: index,
		Camera:     camera,
		Solver:     s.solver,
		Source:     s.source,
		OnComplete: func(_ context.Context, record *calibration.CalibrationRecord) error {
			if err := s.store.InsertHandEyeRecord(record); err != nil {
				return err
			}
			atomic.AddInt64(&s.metrics.HandEyeSaved, 1)
			return nil
		},
	}), nil
}

// controller returns the device's session, creating one on first use.
func (s *Server) controller(c *gin.Context) (*session.Controller, bool) {
	d := device(c)

	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	if ctrl, ok := s.sessions[d.ID]; ok {
		return ctrl, true
	}
	ctrl, err := s.buildSession(d, calibration.CameraWrist)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return nil, false
	}
	s.sessions[d.ID] = ctrl
	return ctrl, true
}

func (s *Server) getSession(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, viewOf(ctrl))
}

type cameraRequest struct {
	Camera calibration.Camera `json:"camera"`
}

// newSession replaces the device's session, reloading its intrinsics.
func (s *Server) newSession(c *gin.Context) {
	var req cameraRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
	}
	if req.Camera == "" {
		req.Camera = calibration.CameraWrist
	}
	if !req.Camera.Valid() {
		abort(c, http.StatusBadRequest, session.ErrUnknownCamera)
		return
	}

	d := device(c)
	ctrl, err := s.buildSession(d, req.Camera)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	s.sessMu.Lock()
	s.sessions[d.ID] = ctrl
	s.sessMu.Unlock()
	c.IndentedJSON(http.StatusCreated, viewOf(ctrl))
}

func (s *Server) selectCamera(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	var req cameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if err := ctrl.SelectCamera(req.Camera); err != nil {
		abort(c, sessionStatus(err), err)
		return
	}
	c.IndentedJSON(http.StatusOK, viewOf(ctrl))
}

func (s *Server) selectIntrinsic(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if err := ctrl.SelectIntrinsic(req.ID); err != nil {
		abort(c, sessionStatus(err), err)
		return
	}
	c.IndentedJSON(http.StatusOK, viewOf(ctrl))
}

func (s *Server) setNotes(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	ctrl.SetNotes(req.Notes)
	c.IndentedJSON(http.StatusOK, viewOf(ctrl))
}

// capturePose blocks for the capture latency.
func (s *Server) capturePose(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	pose, err := ctrl.CaptureOne(c.Request.Context())
	if err != nil {
		abort(c, sessionStatus(err), err)
		return
	}
	c.IndentedJSON(http.StatusCreated, pose)
}

func (s *Server) removePose(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	if !ctrl.RemovePose(c.Param("pose")) {
		abort(c, http.StatusNotFound, errors.New("pose not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

// solve blocks for the solve latency.
func (s *Server) solve(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	result, err := ctrl.Solve(c.Request.Context())
	if err != nil {
		abort(c, sessionStatus(err), err)
		return
	}
	c.IndentedJSON(http.StatusOK, result)
}

func (s *Server) save(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	record, err := ctrl.Save(c.Request.Context())
	if err != nil {
		abort(c, sessionStatus(err), err)
		return
	}
	c.IndentedJSON(http.StatusCreated, record)
}
