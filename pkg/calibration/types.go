package calibration

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Vec3 is a 3-vector. Units depend on the field holding it.
type Vec3 [3]float64

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

// Mat4 is a row-major 4x4 homogeneous transform.
type Mat4 [4][4]float64

// Camera identifies which camera of a device is being calibrated.
type Camera string

const (
	CameraWrist Camera = "wrist"
	CameraFront Camera = "front"
)

// Cameras lists the supported cameras in selector order.
var Cameras = []Camera{CameraWrist, CameraFront}

// Type is the hand-eye calibration configuration.
type Type string

const (
	// TypeEyeInHand: camera mounted on the moving end-effector.
	TypeEyeInHand Type = "eye-in-hand"
	// TypeEyeToHand: camera fixed externally, observing the robot.
	TypeEyeToHand Type = "eye-to-hand"
)

// CalibrationType returns the calibration type fixed to the camera.
func (c Camera) CalibrationType() Type {
	switch c {
	case CameraWrist:
		return TypeEyeInHand
	case CameraFront:
		return TypeEyeToHand
	default:
		return ""
	}
}

// Valid reports whether c is a known camera.
func (c Camera) Valid() bool {
	return c == CameraWrist || c == CameraFront
}

// ParseCamera validates a camera name.
func ParseCamera(s string) (Camera, error) {
	c := Camera(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown camera %q (want %q or %q)", s, CameraWrist, CameraFront)
	}
	return c, nil
}

// RobotPose is the end-effector pose reported by the robot controller.
type RobotPose struct {
	Position    Vec3 `json:"position"`    // mm
	Orientation Vec3 `json:"orientation"` // radians
}

// Extrinsic is the target pose seen by the camera for one sample.
type Extrinsic struct {
	Translation Vec3 `json:"translation"` // mm
	Rotation    Vec3 `json:"rotation"`    // radians
}

// PoseSample is one captured measurement. Samples are never mutated
// after capture; a session can only drop them by ID.
type PoseSample struct {
	ID         string    `json:"id"`
	RobotPose  RobotPose `json:"robotPose"`
	Extrinsic  Extrinsic `json:"extrinsic"`
	CapturedAt time.Time `json:"capturedAt"`
}

// CalibrationResult is the output of a solve.
type CalibrationResult struct {
	TransformationMatrix Mat4    `json:"transformationMatrix"`
	Translation          Vec3    `json:"translation"`       // mm
	RotationMatrix       Mat3    `json:"rotationMatrix"`
	RotationEuler        Vec3    `json:"rotationEuler"`     // degrees
	ReprojectionError    float64 `json:"reprojectionError"` // pixels
	PosesUsed            int     `json:"posesUsed"`
}

// ErrInvalidResult is returned by Validate for a result that no solver
// could have produced.
var ErrInvalidResult = errors.New("invalid calibration result")

// homogeneousRow is the fixed last row of a rigid transform.
var homogeneousRow = [4]float64{0, 0, 0, 1}

// Validate checks the structural invariants of a result: a homogeneous
// transform, a finite non-negative reprojection error and at least one
// pose used.
func (r CalibrationResult) Validate() error {
	if r.TransformationMatrix[3] != homogeneousRow {
		return fmt.Errorf("%w: transformation matrix last row is %v, want %v",
			ErrInvalidResult, r.TransformationMatrix[3], homogeneousRow)
	}
	if math.IsNaN(r.ReprojectionError) || math.IsInf(r.ReprojectionError, 0) || r.ReprojectionError < 0 {
		return fmt.Errorf("%w: reprojection error %v must be a non-negative number",
			ErrInvalidResult, r.ReprojectionError)
	}
	if r.PosesUsed < 1 {
		return fmt.Errorf("%w: poses used %d must be positive", ErrInvalidResult, r.PosesUsed)
	}
	return nil
}

// CalibrationRecord is a saved hand-eye calibration.
type CalibrationRecord struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"deviceId"`
	Camera      Camera    `json:"camera"`
	Type        Type      `json:"type"`
	IntrinsicID string    `json:"intrinsicId"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"createdAt"`
	PosesCount  int       `json:"posesCount"`

	CalibrationResult
}

// Device is a robot that owns cameras and joint calibrations.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// IntrinsicCalibration holds camera-internal parameters, assumed known
// before any hand-eye session starts.
type IntrinsicCalibration struct {
	ID             string     `json:"id"`
	DeviceID       string     `json:"deviceId"`
	Camera         Camera     `json:"camera"`
	FocalLength    [2]float64 `json:"focalLength"`
	PrincipalPoint [2]float64 `json:"principalPoint"`
	Distortion     []float64  `json:"distortion,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// IntrinsicIndex maps IntrinsicKey(device, camera) to the intrinsic
// calibrations available for that camera.
type IntrinsicIndex map[string][]IntrinsicCalibration

// IntrinsicKey builds the "<deviceID>_<camera>" lookup key.
func IntrinsicKey(deviceID string, camera Camera) string {
	return deviceID + "_" + string(camera)
}

// For returns the intrinsic calibrations for a device camera.
func (idx IntrinsicIndex) For(deviceID string, camera Camera) []IntrinsicCalibration {
	if idx == nil {
		return nil
	}
	return idx[IntrinsicKey(deviceID, camera)]
}
