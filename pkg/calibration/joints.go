package calibration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Joint names of the six-axis arm, base to gripper.
const (
	JointShoulderPan  = "shoulder_pan"
	JointShoulderLift = "shoulder_lift"
	JointElbowFlex    = "elbow_flex"
	JointWristFlex    = "wrist_flex"
	JointWristRoll    = "wrist_roll"
	JointGripper      = "gripper"
)

// JointNames is the fixed joint order used by statistics and displays.
var JointNames = []string{
	JointShoulderPan,
	JointShoulderLift,
	JointElbowFlex,
	JointWristFlex,
	JointWristRoll,
	JointGripper,
}

// EncoderStepsPerRevolution is the resolution of the joint encoders.
const EncoderStepsPerRevolution = 4096

// JointCalibration is the saved calibration of a single joint.
// HomingOffset is in encoder steps.
type JointCalibration struct {
	HomingOffset float64 `json:"homingOffset"`
	RangeMin     float64 `json:"rangeMin,omitempty"`
	RangeMax     float64 `json:"rangeMax,omitempty"`
}

// JointCalibrationRecord is one saved joint calibration run.
type JointCalibrationRecord struct {
	ID              string                      `json:"id,omitempty"`
	DeviceID        string                      `json:"deviceId,omitempty"`
	Notes           string                      `json:"notes"`
	CreatedAt       time.Time                   `json:"createdAt"`
	CalibrationData map[string]JointCalibration `json:"calibrationData"`
}

// HomingOffset returns the joint's homing offset and whether the record
// carries that joint at all.
func (r JointCalibrationRecord) HomingOffset(joint string) (float64, bool) {
	jc, ok := r.CalibrationData[joint]
	if !ok {
		return 0, false
	}
	return jc.HomingOffset, true
}

// ErrEmptyJointFile is returned when a joint calibration file holds no
// calibrations.
var ErrEmptyJointFile = errors.New("no joint calibrations in file")

// lerobotJoint is one joint of a LeRobot motor calibration file.
type lerobotJoint struct {
	HomingOffset *float64 `json:"homing_offset"`
	RangeMin     float64  `json:"range_min"`
	RangeMax     float64  `json:"range_max"`
}

// ParseJointFile decodes joint calibrations from JSON. Three layouts are
// accepted: a single record, an array of records, or a LeRobot motor
// calibration map ({"shoulder_pan": {"homing_offset": ...}, ...}), which
// becomes one record.
func ParseJointFile(data []byte) ([]JointCalibrationRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyJointFile
	}

	if data[0] == '[' {
		var records []JointCalibrationRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decoding joint calibration list: %w", err)
		}
		if len(records) == 0 {
			return nil, ErrEmptyJointFile
		}
		return records, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decoding joint calibration file: %w", err)
	}

	if _, ok := fields["calibrationData"]; ok {
		var r JointCalibrationRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decoding joint calibration: %w", err)
		}
		return []JointCalibrationRecord{r}, nil
	}

	r := JointCalibrationRecord{CalibrationData: make(map[string]JointCalibration, len(fields))}
	for name, raw := range fields {
		var j lerobotJoint
		if err := json.Unmarshal(raw, &j); err != nil {
			return nil, fmt.Errorf("decoding joint %s: %w", name, err)
		}
		if j.HomingOffset == nil {
			return nil, fmt.Errorf("joint %s: missing homing_offset", name)
		}
		r.CalibrationData[name] = JointCalibration{
			HomingOffset: *j.HomingOffset,
			RangeMin:     j.RangeMin,
			RangeMax:     j.RangeMax,
		}
	}
	if len(r.CalibrationData) == 0 {
		return nil, ErrEmptyJointFile
	}
	return []JointCalibrationRecord{r}, nil
}
