package gain

import (
	"math"
	"testing"
)

func TestDbConversion(t *testing.T) {
	tests := []struct {
		name    string
		linear  float64
		db      float64
		epsilon float64
	}{
		{"Unity gain", 1.0, 0.0, 0.001},
		{"Half amplitude", 0.5, -6.02, 0.01},
		{"Double amplitude", 2.0, 6.02, 0.01},
		{"Zero amplitude", 0.0, MinDB, 0.001},
		{"Negative amplitude", -1.0, MinDB, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotDb := LinearToDb(tt.linear)
			if math.Abs(gotDb-tt.db) > tt.epsilon {
				t.Errorf("LinearToDb(%f) = %f, want %f", tt.linear, gotDb, tt.db)
			}

			// MinDB maps back to silence, not to the original amplitude.
			if tt.db != MinDB {
				gotLinear := DbToLinear(tt.db)
				if math.Abs(gotLinear-tt.linear) > tt.epsilon {
					t.Errorf("DbToLinear(%f) = %f, want %f", tt.db, gotLinear, tt.linear)
				}
			}
		})
	}

	if got := DbToLinear(MinDB - 1); got != 0 {
		t.Errorf("DbToLinear below MinDB = %f, want 0", got)
	}
}

func TestRampFirstCallAppliesTarget(t *testing.T) {
	var r Ramp
	buf := []float64{1, 1, 1, 1}
	r.Apply(buf, buf, 0.5)
	for i, v := range buf {
		if v != 0.5 {
			t.Errorf("buf[%d] = %f, want 0.5", i, v)
		}
	}
	if r.Current() != 0.5 {
		t.Errorf("Current() = %f, want 0.5", r.Current())
	}
}

func TestRampInterpolatesToTarget(t *testing.T) {
	var r Ramp
	r.Reset(0)
	src := []float64{1, 1, 1, 1}
	dst := make([]float64, 4)
	r.Apply(dst, src, 1)

	want := []float64{0.25, 0.5, 0.75, 1}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-12 {
			t.Errorf("dst[%d] = %f, want %f", i, dst[i], want[i])
		}
	}
	if src[0] != 1 {
		t.Error("Apply modified src")
	}
	if r.Current() != 1 {
		t.Errorf("Current() = %f, want 1", r.Current())
	}
}

func TestRampShortestSliceWins(t *testing.T) {
	var r Ramp
	r.Reset(2)
	dst := []float64{9, 9, 9}
	r.Apply(dst, []float64{1, 1}, 2)
	if dst[0] != 2 || dst[1] != 2 || dst[2] != 9 {
		t.Errorf("dst = %v, want [2 2 9]", dst)
	}

	r.Apply(nil, nil, 3)
	if r.Current() != 2 {
		t.Errorf("empty Apply moved the ramp to %f", r.Current())
	}
}
