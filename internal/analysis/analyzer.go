package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mr-Dark-debug/calibscope/internal/database"
)

// Analyzer aggregates calibration histories loaded from a store.
type Analyzer struct {
	store database.Store
}

// NewAnalyzer creates a new analysis engine backed by the given store.
func NewAnalyzer(store database.Store) *Analyzer {
	return &Analyzer{store: store}
}

// DeviceReport is the output of `calibscope joints stats`.
type DeviceReport struct {
	DeviceID    string       `json:"deviceId"`
	GeneratedAt string       `json:"generatedAt"`
	NoData      bool         `json:"noData"`
	Joints      *JointReport `json:"joints,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// DeviceHistory aggregates up to limit of the device's most recent joint
// calibrations. A device without calibrations yields NoData, not an error.
func (a *Analyzer) DeviceHistory(deviceID string, limit int) (*DeviceReport, error) {
	records, err := a.store.QueryJointCalibrations(deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying joint calibrations for %s: %w", deviceID, err)
	}

	report := &DeviceReport{
		DeviceID:    deviceID,
		GeneratedAt: time.Now().Format(time.RFC3339),
	}

	joints, err := Aggregate(records)
	if errors.Is(err, ErrNoData) {
		report.NoData = true
		return report, nil
	}
	if err != nil {
		return nil, err
	}
	report.Joints = joints

	for _, js := range joints.Joints {
		if js.Samples == 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: no homing offset in any calibration", js.Joint))
			continue
		}
		if js.Trend.Drifting {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("⚠ %s homing offset is drifting (%.2f steps/calibration, R²=%.3f)",
					js.Joint, js.Trend.Slope, js.Trend.RSquared))
		}
	}

	return report, nil
}

// dataPoint is one observation for regression: x is the calibration
// index, y the homing offset.
type dataPoint struct {
	x float64
	y float64
}

// linearRegression computes ordinary least squares regression.
// Returns slope (m), intercept (b), and R-squared goodness of fit.
func linearRegression(points []dataPoint) (slope, intercept, rSquared float64) {
	n := float64(len(points))
	if n < 2 {
		return 0, 0, 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for _, p := range points {
		sumX += p.x
		sumY += p.y
		sumXY += p.x * p.y
		sumX2 += p.x * p.x
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 0
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for _, p := range points {
		predicted := slope*p.x + intercept
		ssRes += (p.y - predicted) * (p.y - predicted)
		ssTot += (p.y - meanY) * (p.y - meanY)
	}

	if ssTot == 0 {
		rSquared = 1.0
	} else {
		rSquared = 1 - ssRes/ssTot
	}

	return slope, intercept, rSquared
}

// FormatReport generates a human-readable markdown report.
func FormatReport(report *DeviceReport) string {
	var b strings.Builder

	b.WriteString("# Joint Calibration Report\n\n")
	b.WriteString(fmt.Sprintf("**Device:** `%s`\n", report.DeviceID))
	b.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt))

	if report.NoData || report.Joints == nil {
		b.WriteString("No calibration data.\n")
		return b.String()
	}

	jr := report.Joints
	b.WriteString(fmt.Sprintf("Calibrations analyzed: %d\n\n", jr.Calibrations))

	b.WriteString("## Homing Offset Statistics\n\n")
	b.WriteString("| Joint | N | Mean | Std | Min | Max | Range | Std (°) | Range (°) | Err @330mm |\n")
	b.WriteString("|-------|---|------|-----|-----|-----|-------|---------|-----------|------------|\n")
	for _, js := range jr.Joints {
		if js.Samples == 0 {
			b.WriteString(fmt.Sprintf("| %s | 0 | - | - | - | - | - | - | - | - |\n", js.Joint))
			continue
		}
		b.WriteString(fmt.Sprintf("| %s | %d | %.1f | %.2f | %.0f | %.0f | %.0f | %.3f | %.3f | %.3f |\n",
			js.Joint, js.Samples, js.Mean, js.Std, js.Min, js.Max, js.Range,
			js.StdDeg, js.RangeDeg, js.Error330mm))
	}
	b.WriteString("\n")

	b.WriteString("## Drift\n\n")
	b.WriteString("| Joint | Slope (steps/cal) | R² |\n")
	b.WriteString("|-------|-------------------|----|\n")
	for _, js := range jr.Joints {
		if js.Samples < 2 {
			continue
		}
		b.WriteString(fmt.Sprintf("| %s | %.2f | %.3f |\n", js.Joint, js.Trend.Slope, js.Trend.RSquared))
	}
	b.WriteString("\n")

	if len(report.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range report.Warnings {
			b.WriteString(fmt.Sprintf("- %s\n", w))
		}
	}

	return b.String()
}
