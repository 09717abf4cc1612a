package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

// PoseSource captures one pose sample from the robot and camera.
type PoseSource interface {
	Capture(ctx context.Context) (calibration.PoseSample, error)
}

// Solver turns a set of pose samples into a hand-eye calibration.
// Implementations must not retain or modify the slice.
type Solver interface {
	Solve(ctx context.Context, poses []calibration.PoseSample) (*calibration.CalibrationResult, error)
}

// Placeholder ranges. Nothing here is measured: a real integration
// replaces PlaceholderPoseSource and PlaceholderSolver.
const (
	maxOrientation = 0.25 // rad

	DefaultCaptureDelay = 500 * time.Millisecond
	DefaultSolveDelay   = 2 * time.Second
)

// randSource is a goroutine-safe wrapper around *rand.Rand with a
// runtime-adjustable simulated latency.
type randSource struct {
	mu    sync.Mutex
	rng   *rand.Rand
	delay time.Duration
	now   func() time.Time
}

func (r *randSource) init(delay time.Duration, rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	r.rng = rng
	r.delay = delay
	r.now = time.Now
}

func (r *randSource) uniform(lo, hi float64) float64 {
	return lo + r.rng.Float64()*(hi-lo)
}

func (r *randSource) currentDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delay
}

// SetDelay changes the simulated latency for subsequent calls.
func (r *randSource) SetDelay(d time.Duration) {
	r.mu.Lock()
	r.delay = d
	r.mu.Unlock()
}

// PlaceholderPoseSource produces randomized, bounded pose samples after
// a simulated capture delay.
type PlaceholderPoseSource struct {
	randSource
}

// NewPlaceholderPoseSource creates a pose source. A nil rng is seeded
// from the clock.
func NewPlaceholderPoseSource(delay time.Duration, rng *rand.Rand) *PlaceholderPoseSource {
	p := &PlaceholderPoseSource{}
	p.init(delay, rng)
	return p
}

func (p *PlaceholderPoseSource) Capture(ctx context.Context) (calibration.PoseSample, error) {
	if err := wait(ctx, p.currentDelay()); err != nil {
		return calibration.PoseSample{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return calibration.PoseSample{}, errors.Wrap(err, "generating pose id")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return calibration.PoseSample{
		ID: id.String(),
		RobotPose: calibration.RobotPose{
			Position: calibration.Vec3{
				p.uniform(200, 400),
				p.uniform(-150, 150),
				p.uniform(150, 350),
			},
			Orientation: calibration.Vec3{
				p.uniform(-maxOrientation, maxOrientation),
				p.uniform(-maxOrientation, maxOrientation),
				p.uniform(-maxOrientation, maxOrientation),
			},
		},
		Extrinsic: calibration.Extrinsic{
			Translation: calibration.Vec3{
				p.uniform(-50, 50),
				p.uniform(-50, 50),
				p.uniform(0, 100),
			},
			Rotation: calibration.Vec3{
				p.uniform(-maxOrientation, maxOrientation),
				p.uniform(-maxOrientation, maxOrientation),
				p.uniform(-maxOrientation, maxOrientation),
			},
		},
		CapturedAt: p.now(),
	}, nil
}

// PlaceholderSolver stands in for the real pose-set solver. It returns a
// randomized but geometrically consistent transform: the rotation matrix
// is built from the reported Euler angles and the homogeneous matrix
// embeds both.
type PlaceholderSolver struct {
	randSource
}

// NewPlaceholderSolver creates a solver. A nil rng is seeded from the clock.
func NewPlaceholderSolver(delay time.Duration, rng *rand.Rand) *PlaceholderSolver {
	s := &PlaceholderSolver{}
	s.init(delay, rng)
	return s
}

func (s *PlaceholderSolver) Solve(ctx context.Context, poses []calibration.PoseSample) (*calibration.CalibrationResult, error) {
	if len(poses) == 0 {
		return nil, errors.New("solve called without poses")
	}
	if err := wait(ctx, s.currentDelay()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eulerDeg := calibration.Vec3{
		s.uniform(-15, 15),
		s.uniform(-15, 15),
		s.uniform(-15, 15),
	}
	translation := calibration.Vec3{
		s.uniform(-60, 60),
		s.uniform(-60, 60),
		s.uniform(20, 120),
	}
	rot := calibration.RotationFromEuler(eulerDeg.Radians())

	return &calibration.CalibrationResult{
		TransformationMatrix: calibration.Homogeneous(rot, translation),
		Translation:          translation,
		RotationMatrix:       rot,
		RotationEuler:        eulerDeg,
		ReprojectionError:    s.uniform(0.1, 0.6),
		PosesUsed:            len(poses),
	}, nil
}
