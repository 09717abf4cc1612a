// Package analysis computes deterministic statistics over saved joint
// calibrations. Everything here is elementary arithmetic over the input
// snapshot; nothing is cached and inputs are never modified.
//
// Key outputs:
//   - Per-joint homing offset spread (mean, population std, min/max/range)
//     with encoder-step to degree conversions
//   - Propagated positional error at a 330 mm lever arm
//   - A chronological per-joint time series and a range/std comparison
//   - Per-joint drift trend via linear regression
package analysis

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

// ErrNoData is returned when there are no calibrations to aggregate.
var ErrNoData = errors.New("no calibration data")

// LeverArmMM is the lever arm used for the propagated positional error.
const LeverArmMM = 330

// JointStats summarizes one joint's homing offsets, in encoder steps
// unless the field name says otherwise.
type JointStats struct {
	Joint      string  `json:"joint"`
	Samples    int     `json:"samples"`
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Range      float64 `json:"range"`
	StdDeg     float64 `json:"stdDeg"`
	RangeDeg   float64 `json:"rangeDeg"`
	Error330mm float64 `json:"error330mm"`
	Trend      Trend   `json:"trend"`
}

// Trend is the least-squares drift of a joint's homing offset across
// successive calibrations.
type Trend struct {
	Slope     float64 `json:"slope"` // steps per calibration
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"rSquared"`
	Drifting  bool    `json:"drifting"`
}

// SeriesRow is one calibration in the chronological time series.
// Joints missing from the record are absent from Values.
type SeriesRow struct {
	Index     int                `json:"index"`
	Label     string             `json:"label"`
	CreatedAt time.Time          `json:"createdAt,omitempty"`
	Values    map[string]float64 `json:"values"`
}

// JointSpread pairs range and std for the comparison chart.
type JointSpread struct {
	Joint string  `json:"joint"`
	Range float64 `json:"range"`
	Std   float64 `json:"std"`
}

// JointReport is the full aggregation over a calibration history.
type JointReport struct {
	Calibrations int           `json:"calibrations"`
	Joints       []JointStats  `json:"joints"`
	TimeSeries   []SeriesRow   `json:"timeSeries"`
	Comparison   []JointSpread `json:"comparison"`
}

// Joint returns the stats for a joint name.
func (r *JointReport) Joint(name string) (JointStats, bool) {
	return lo.Find(r.Joints, func(js JointStats) bool { return js.Joint == name })
}

// StepsToDegrees converts encoder steps to degrees.
func StepsToDegrees(steps float64) float64 {
	return steps * 360 / calibration.EncoderStepsPerRevolution
}

// Error330mm is the positional error at a 330 mm lever arm for a homing
// offset std in encoder steps. The expression is kept exactly as
// 330 × std × (π/180) × 360/4096 so results match saved reports bit for
// bit.
// TODO: confirm the units with the arm maintainers; the π/180 factor is
// applied to a step-domain std rather than to StdDeg.
func Error330mm(std float64) float64 {
	return LeverArmMM * std * (math.Pi / 180) * 360 / calibration.EncoderStepsPerRevolution
}

// Aggregate computes per-joint statistics over records. The records may
// arrive in any order: they are sorted by CreatedAt when every record has
// one, otherwise they are assumed newest-first (the storage listing
// order) and reversed. An empty input returns ErrNoData.
func Aggregate(records []calibration.JointCalibrationRecord) (*JointReport, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}

	ordered := chronological(records)

	report := &JointReport{
		Calibrations: len(ordered),
		TimeSeries:   timeSeries(ordered),
	}
	for _, joint := range calibration.JointNames {
		js := jointStats(joint, ordered)
		report.Joints = append(report.Joints, js)
		report.Comparison = append(report.Comparison, JointSpread{
			Joint: joint,
			Range: js.Range,
			Std:   js.Std,
		})
	}
	return report, nil
}

// chronological returns a new slice ordered oldest first.
func chronological(records []calibration.JointCalibrationRecord) []calibration.JointCalibrationRecord {
	out := make([]calibration.JointCalibrationRecord, len(records))
	copy(out, records)

	dated := !lo.ContainsBy(out, func(r calibration.JointCalibrationRecord) bool {
		return r.CreatedAt.IsZero()
	})
	if dated {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
		return out
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func timeSeries(ordered []calibration.JointCalibrationRecord) []SeriesRow {
	return lo.Map(ordered, func(r calibration.JointCalibrationRecord, i int) SeriesRow {
		values := make(map[string]float64, len(calibration.JointNames))
		for _, joint := range calibration.JointNames {
			if v, ok := r.HomingOffset(joint); ok {
				values[joint] = v
			}
		}
		return SeriesRow{
			Index:     i + 1,
			Label:     seriesLabel(r, i),
			CreatedAt: r.CreatedAt,
			Values:    values,
		}
	})
}

func seriesLabel(r calibration.JointCalibrationRecord, i int) string {
	switch {
	case r.Notes != "":
		return r.Notes
	case !r.CreatedAt.IsZero():
		return r.CreatedAt.Format("2006-01-02 15:04")
	default:
		return "#" + strconv.Itoa(i+1)
	}
}

func jointStats(joint string, ordered []calibration.JointCalibrationRecord) JointStats {
	js := JointStats{Joint: joint}

	var values []float64
	var points []dataPoint
	for i, r := range ordered {
		if v, ok := r.HomingOffset(joint); ok {
			values = append(values, v)
			points = append(points, dataPoint{x: float64(i), y: v})
		}
	}
	if len(values) == 0 {
		return js
	}

	n := float64(len(values))
	mean := lo.Sum(values) / n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / n)

	js.Samples = len(values)
	js.Mean = mean
	js.Std = std
	js.Min = lo.Min(values)
	js.Max = lo.Max(values)
	js.Range = js.Max - js.Min
	js.StdDeg = StepsToDegrees(std)
	js.RangeDeg = StepsToDegrees(js.Range)
	js.Error330mm = Error330mm(std)

	slope, intercept, r2 := linearRegression(points)
	js.Trend = Trend{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  r2,
		Drifting:  math.Abs(slope) > 1 && r2 > 0.7,
	}
	return js
}
