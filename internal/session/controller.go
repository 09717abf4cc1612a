// Package session implements the hand-eye calibration session: camera
// and intrinsic selection, pose capture, solving and saving.
//
// A Controller owns one session's state. Capture and solve are blocking
// calls meant to run off the UI loop (a tea.Cmd, an HTTP handler); each
// is guarded by its own busy flag so it can never overlap with itself.
// Switching camera or saving starts a new session generation, and work
// that was in flight for an older generation is discarded on completion.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

// MinPoses is the minimum number of captured poses a solve accepts.
const MinPoses = 10

// CompletionFunc receives every saved calibration record. It is called
// exactly once per successful Save and never retried.
type CompletionFunc func(ctx context.Context, record *calibration.CalibrationRecord) error

// State is a snapshot of a session.
type State struct {
	Device      *calibration.Device
	Camera      calibration.Camera
	Type        calibration.Type
	IntrinsicID string
	Poses       []calibration.PoseSample
	Capturing   bool
	Solving     bool
	Saving      bool
	Result      *calibration.CalibrationResult
	Notes       string
}

// Options configures a Controller. Solver and Source default to the
// placeholders with their default delays.
type Options struct {
	Device     *calibration.Device
	Intrinsics calibration.IntrinsicIndex
	Camera     calibration.Camera
	Solver     Solver
	Source     PoseSource
	OnComplete CompletionFunc
	Now        func() time.Time
}

// Controller drives one calibration session.
type Controller struct {
	mu         sync.Mutex
	state      State
	generation uint64

	intrinsics calibration.IntrinsicIndex
	solver     Solver
	source     PoseSource
	onComplete CompletionFunc
	now        func() time.Time
}

// NewController creates a session for opts.Device. A nil device yields a
// controller that refuses every operation with ErrNoDevice.
func NewController(opts Options) *Controller {
	camera := opts.Camera
	if !camera.Valid() {
		camera = calibration.CameraWrist
	}
	if opts.Solver == nil {
		opts.Solver = NewPlaceholderSolver(DefaultSolveDelay, nil)
	}
	if opts.Source == nil {
		opts.Source = NewPlaceholderPoseSource(DefaultCaptureDelay, nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Controller{
		state: State{
			Device: opts.Device,
			Camera: camera,
			Type:   camera.CalibrationType(),
		},
		intrinsics: opts.Intrinsics,
		solver:     opts.Solver,
		source:     opts.Source,
		onComplete: opts.OnComplete,
		now:        opts.Now,
	}
}

// Snapshot returns a copy of the current state, safe to render.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state
	st.Poses = append([]calibration.PoseSample(nil), c.state.Poses...)
	if c.state.Result != nil {
		res := *c.state.Result
		st.Result = &res
	}
	return st
}

func (c *Controller) log() *logrus.Entry {
	fields := logrus.Fields{
		"camera":    c.state.Camera,
		"operation": "handeye",
	}
	if c.state.Device != nil {
		fields["device"] = c.state.Device.ID
	}
	return logrus.WithFields(fields)
}

// reset clears the per-session data and starts a new generation.
// Callers hold c.mu.
func (c *Controller) reset() {
	c.state.Poses = nil
	c.state.Result = nil
	c.generation++
}

// SelectCamera switches camera and its fixed calibration type. It always
// invalidates the session: the intrinsic selection, poses and result are
// cleared even when the camera does not change.
func (c *Controller) SelectCamera(camera calibration.Camera) error {
	if !camera.Valid() {
		return ErrUnknownCamera
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Camera = camera
	c.state.Type = camera.CalibrationType()
	c.state.IntrinsicID = ""
	c.reset()

	c.log().Debug("camera selected")
	return nil
}

// AvailableIntrinsics lists the intrinsic calibrations of the current
// device camera. An empty list means capture is disabled.
func (c *Controller) AvailableIntrinsics() []calibration.IntrinsicCalibration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availableLocked()
}

func (c *Controller) availableLocked() []calibration.IntrinsicCalibration {
	if c.state.Device == nil {
		return nil
	}
	return c.intrinsics.For(c.state.Device.ID, c.state.Camera)
}

// SelectIntrinsic picks one of AvailableIntrinsics by ID. An empty id
// clears the selection.
func (c *Controller) SelectIntrinsic(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Device == nil {
		return ErrNoDevice
	}
	if id == "" {
		c.state.IntrinsicID = ""
		return nil
	}
	if !lo.ContainsBy(c.availableLocked(), func(ic calibration.IntrinsicCalibration) bool {
		return ic.ID == id
	}) {
		return ErrUnknownIntrinsic
	}
	c.state.IntrinsicID = id
	return nil
}

// SetNotes replaces the free-text notes saved with the record.
func (c *Controller) SetNotes(notes string) {
	c.mu.Lock()
	c.state.Notes = notes
	c.mu.Unlock()
}

// CanCapture reports whether the capture control should be enabled.
func (c *Controller) CanCapture() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captureCheckLocked() == nil
}

func (c *Controller) captureCheckLocked() error {
	switch {
	case c.state.Device == nil:
		return ErrNoDevice
	case c.state.IntrinsicID == "":
		return ErrNoIntrinsic
	case c.state.Capturing:
		return ErrCaptureInProgress
	}
	return nil
}

// CaptureOne captures a single pose and appends it to the session.
// It blocks for the pose source's latency.
func (c *Controller) CaptureOne(ctx context.Context) (calibration.PoseSample, error) {
	c.mu.Lock()
	if err := c.captureCheckLocked(); err != nil {
		c.mu.Unlock()
		return calibration.PoseSample{}, err
	}
	c.state.Capturing = true
	gen := c.generation
	c.mu.Unlock()

	sample, err := c.source.Capture(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Capturing = false

	if err != nil {
		c.log().WithError(err).Warn("pose capture failed")
		return calibration.PoseSample{}, errors.Wrap(err, "capturing pose")
	}
	if gen != c.generation {
		return calibration.PoseSample{}, ErrSessionReset
	}

	// Append to a fresh backing array so earlier snapshots stay valid.
	poses := make([]calibration.PoseSample, len(c.state.Poses), len(c.state.Poses)+1)
	copy(poses, c.state.Poses)
	c.state.Poses = append(poses, sample)

	c.log().WithField("poses", len(c.state.Poses)).Debug("pose captured")
	return sample, nil
}

// RemovePose drops the pose with the given ID, keeping the order of the
// rest. It reports whether a pose was removed.
func (c *Controller) RemovePose(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(c.state.Poses, func(p calibration.PoseSample) bool {
		return p.ID == id
	})
	if !ok {
		return false
	}

	poses := make([]calibration.PoseSample, 0, len(c.state.Poses)-1)
	poses = append(poses, c.state.Poses[:idx]...)
	c.state.Poses = append(poses, c.state.Poses[idx+1:]...)
	return true
}

// CanSolve reports whether the solve control should be enabled.
func (c *Controller) CanSolve() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Device != nil && !c.state.Solving && len(c.state.Poses) >= MinPoses
}

// Solve runs the solver over the poses captured so far. With fewer than
// MinPoses poses it returns a *ValidationError and changes nothing.
func (c *Controller) Solve(ctx context.Context) (*calibration.CalibrationResult, error) {
	c.mu.Lock()
	if c.state.Device == nil {
		c.mu.Unlock()
		return nil, ErrNoDevice
	}
	if n := len(c.state.Poses); n < MinPoses {
		c.mu.Unlock()
		return nil, notEnoughPoses(n)
	}
	if c.state.Solving {
		c.mu.Unlock()
		return nil, ErrSolveInProgress
	}
	c.state.Solving = true
	gen := c.generation
	poses := append([]calibration.PoseSample(nil), c.state.Poses...)
	c.mu.Unlock()

	started := time.Now()
	result, err := c.solver.Solve(ctx, poses)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Solving = false

	if err != nil {
		c.log().WithError(err).Error("hand-eye solve failed")
		return nil, errors.Wrap(err, "solving hand-eye calibration")
	}
	if result == nil {
		return nil, errors.New("solver returned no result")
	}
	if gen != c.generation {
		return nil, ErrSessionReset
	}

	res := *result
	res.PosesUsed = len(poses)
	c.state.Result = &res

	c.log().WithFields(logrus.Fields{
		"poses":        res.PosesUsed,
		"reprojection": res.ReprojectionError,
		"elapsed":      time.Since(started).Round(time.Millisecond),
	}).Info("hand-eye calibration solved")

	out := res
	return &out, nil
}

// Save packages the current result into a CalibrationRecord and hands it
// to the completion callback. On success the result, poses and notes are
// cleared; camera and intrinsic selection are kept. Without a result Save
// returns ErrNoResult and does nothing. When the callback fails the
// session is left as it was so the operator can save again.
func (c *Controller) Save(ctx context.Context) (*calibration.CalibrationRecord, error) {
	c.mu.Lock()
	if c.state.Result == nil {
		c.mu.Unlock()
		return nil, ErrNoResult
	}
	if c.state.Saving {
		c.mu.Unlock()
		return nil, ErrSaveInProgress
	}

	id, err := uuid.NewV7()
	if err != nil {
		c.mu.Unlock()
		return nil, errors.Wrap(err, "generating record id")
	}

	record := &calibration.CalibrationRecord{
		ID:                id.String(),
		DeviceID:          c.state.Device.ID,
		Camera:            c.state.Camera,
		Type:              c.state.Type,
		IntrinsicID:       c.state.IntrinsicID,
		Notes:             c.state.Notes,
		CreatedAt:         c.now(),
		PosesCount:        len(c.state.Poses),
		CalibrationResult: *c.state.Result,
	}
	c.state.Saving = true
	gen := c.generation
	onComplete := c.onComplete
	c.mu.Unlock()

	var cbErr error
	if onComplete != nil {
		cbErr = onComplete(ctx, record)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Saving = false

	if cbErr != nil {
		c.log().WithError(cbErr).Error("saving calibration record failed")
		return nil, errors.Wrap(cbErr, "saving calibration record")
	}

	if gen == c.generation {
		c.state.Notes = ""
		c.reset()
	}

	c.log().WithField("record", record.ID).Info("hand-eye calibration saved")
	return record, nil
}
