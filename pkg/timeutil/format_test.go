package timeutil

import (
	"testing"
	"time"
)

func TestNanoRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 123, time.UTC)
	if got := FromNano(ToNano(now)); !got.Equal(now) {
		t.Errorf("expected %v, got %v", now, got)
	}
	if ToNano(time.Time{}) != 0 || !FromNano(0).IsZero() {
		t.Error("zero time must map to 0 and back")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{450 * time.Millisecond, "450ms"},
		{1200 * time.Millisecond, "1.2s"},
		{135300 * time.Millisecond, "2m 15.3s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRelative(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "just now"},
		{5 * time.Second, "5s ago"},
		{2 * time.Minute, "2m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := relative(tt.in); got != tt.want {
			t.Errorf("relative(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatZero(t *testing.T) {
	if FormatTimestamp(time.Time{}) != "-" || FormatTimestampFull(time.Time{}) != "-" {
		t.Error("zero time should format as -")
	}
}
