package session

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

func within(v, lo, hi float64) bool { return v >= lo && v < hi }

func TestPlaceholderPoseSourceBounds(t *testing.T) {
	src := NewPlaceholderPoseSource(0, rand.New(rand.NewSource(42)))
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		p, err := src.Capture(context.Background())
		if err != nil {
			t.Fatalf("Capture failed: %v", err)
		}
		if p.ID == "" || seen[p.ID] {
			t.Fatalf("pose ID %q empty or duplicated", p.ID)
		}
		seen[p.ID] = true

		pos := p.RobotPose.Position
		if !within(pos[0], 200, 400) || !within(pos[1], -150, 150) || !within(pos[2], 150, 350) {
			t.Errorf("position out of range: %v", pos)
		}
		for _, r := range append(p.RobotPose.Orientation[:], p.Extrinsic.Rotation[:]...) {
			if math.Abs(r) > maxOrientation {
				t.Errorf("rotation %f exceeds ±%.2f rad", r, maxOrientation)
			}
		}
		tr := p.Extrinsic.Translation
		if !within(tr[0], -50, 50) || !within(tr[1], -50, 50) || !within(tr[2], 0, 100) {
			t.Errorf("extrinsic translation out of range: %v", tr)
		}
		if p.CapturedAt.IsZero() {
			t.Error("CapturedAt not set")
		}
	}
}

func TestPlaceholderSolverConsistency(t *testing.T) {
	solver := NewPlaceholderSolver(0, rand.New(rand.NewSource(1)))
	poses := make([]calibration.PoseSample, 10)

	res, err := solver.Solve(context.Background(), poses)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if res.PosesUsed != 10 {
		t.Errorf("expected PosesUsed=10, got %d", res.PosesUsed)
	}
	if res.ReprojectionError < 0.1 || res.ReprojectionError >= 0.6 {
		t.Errorf("reprojection error out of range: %f", res.ReprojectionError)
	}
	if res.TransformationMatrix[3] != [4]float64{0, 0, 0, 1} {
		t.Errorf("last row must be [0 0 0 1], got %v", res.TransformationMatrix[3])
	}
	want := calibration.Homogeneous(calibration.RotationFromEuler(res.RotationEuler.Radians()), res.Translation)
	if want != res.TransformationMatrix {
		t.Errorf("matrix does not match euler/translation:\n%v\n%v", want, res.TransformationMatrix)
	}
	if res.RotationMatrix != calibration.RotationFromEuler(res.RotationEuler.Radians()) {
		t.Error("rotation matrix does not match euler angles")
	}
}

func TestPlaceholderSolverRejectsEmpty(t *testing.T) {
	solver := NewPlaceholderSolver(0, nil)
	if _, err := solver.Solve(context.Background(), nil); err == nil {
		t.Error("expected error for empty pose set")
	}
}

func TestPlaceholderHonoursContext(t *testing.T) {
	src := NewPlaceholderPoseSource(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	solver := NewPlaceholderSolver(time.Hour, nil)
	solver.SetDelay(0)
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if _, err := solver.Solve(ctx2, make([]calibration.PoseSample, 1)); err != nil {
		t.Errorf("Solve after SetDelay(0) failed: %v", err)
	}
}
