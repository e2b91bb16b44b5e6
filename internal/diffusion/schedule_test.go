package diffusion

import (
	"errors"
	"math"
	"testing"
)

func TestSigmoidScheduleStartsAtOne(t *testing.T) {
	s, err := NewSigmoidSchedule(16, DefaultSigmoidStart, DefaultSigmoidEnd, DefaultSigmoidTau)
	if err != nil {
		t.Fatalf("NewSigmoidSchedule failed: %v", err)
	}

	if ac := s.AlphasCumprod(); ac[0] != 1 {
		t.Errorf("alphas_cumprod[0] = %v, want exactly 1", ac[0])
	}
	if got := s.AlphaCumprod(-1); got != 1 {
		t.Errorf("AlphaCumprod(-1) = %v, want exactly 1", got)
	}
}

func TestSigmoidScheduleMonotonicPositive(t *testing.T) {
	for _, steps := range []int{1, 4, 16, 300, 1000} {
		s, err := NewSigmoidSchedule(steps, DefaultSigmoidStart, DefaultSigmoidEnd, DefaultSigmoidTau)
		if err != nil {
			t.Fatalf("steps=%d: NewSigmoidSchedule failed: %v", steps, err)
		}

		ac := s.AlphasCumprod()
		if len(ac) != steps+1 {
			t.Fatalf("steps=%d: len(alphas_cumprod) = %d, want %d", steps, len(ac), steps+1)
		}
		for i, v := range ac {
			if v <= 0 {
				t.Errorf("steps=%d: alphas_cumprod[%d] = %v, want > 0", steps, i, v)
			}
			if i > 0 && v > ac[i-1] {
				t.Errorf("steps=%d: alphas_cumprod increases at %d: %v > %v", steps, i, v, ac[i-1])
			}
		}
	}
}

func TestSigmoidScheduleBetaRange(t *testing.T) {
	s, err := NewSigmoidSchedule(1000, DefaultSigmoidStart, DefaultSigmoidEnd, DefaultSigmoidTau)
	if err != nil {
		t.Fatalf("NewSigmoidSchedule failed: %v", err)
	}

	betas := s.Betas()
	if len(betas) != 1000 {
		t.Fatalf("len(betas) = %d, want 1000", len(betas))
	}
	for i, b := range betas {
		if b < 0 || b > 0.999 {
			t.Errorf("betas[%d] = %v, want within [0, 0.999]", i, b)
		}
	}
}

func TestSigmoidScheduleCumprodConsistency(t *testing.T) {
	s, err := NewSigmoidSchedule(64, DefaultSigmoidStart, DefaultSigmoidEnd, DefaultSigmoidTau)
	if err != nil {
		t.Fatalf("NewSigmoidSchedule failed: %v", err)
	}

	ac := s.AlphasCumprod()
	for i, b := range s.Betas() {
		if got := ac[i] * (1 - b); got != ac[i+1] {
			t.Errorf("alphas_cumprod[%d] = %v, want %v from beta chain", i+1, ac[i+1], got)
		}
	}
}

func TestSigmoidScheduleErrors(t *testing.T) {
	tests := []struct {
		name            string
		steps           int
		start, end, tau float64
	}{
		{"ZeroSteps", 0, -3, 3, 1},
		{"NegativeSteps", -5, -3, 3, 1},
		{"ZeroTau", 10, -3, 3, 0},
		{"NegativeTau", 10, -3, 3, -0.5},
		{"FlatEndpoints", 10, 2, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSigmoidSchedule(tt.steps, tt.start, tt.end, tt.tau)
			if err == nil {
				t.Fatal("NewSigmoidSchedule succeeded, want error")
			}
			var schedErr *InvalidScheduleError
			if !errors.As(err, &schedErr) {
				t.Errorf("error type = %T, want *InvalidScheduleError", err)
			}
		})
	}
}

func TestAlphaCumprodRangePanics(t *testing.T) {
	s, err := NewSigmoidSchedule(8, DefaultSigmoidStart, DefaultSigmoidEnd, DefaultSigmoidTau)
	if err != nil {
		t.Fatalf("NewSigmoidSchedule failed: %v", err)
	}

	for _, level := range []int{-2, 8, 100} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("AlphaCumprod(%d) did not panic", level)
				}
			}()
			s.AlphaCumprod(level)
		}()
	}
}

func TestNoiseIndicesLadder(t *testing.T) {
	s, err := NewSigmoidSchedule(1000, DefaultSigmoidStart, DefaultSigmoidEnd, DefaultSigmoidTau)
	if err != nil {
		t.Fatalf("NewSigmoidSchedule failed: %v", err)
	}

	indices, err := s.NoiseIndices(10, 1000)
	if err != nil {
		t.Fatalf("NoiseIndices failed: %v", err)
	}
	if len(indices) != 11 {
		t.Fatalf("len(indices) = %d, want 11", len(indices))
	}
	if indices[0] != -1 {
		t.Errorf("indices[0] = %d, want -1 (clean)", indices[0])
	}
	if last := indices[len(indices)-1]; last != 999 {
		t.Errorf("indices[last] = %d, want 999", last)
	}
	for i := 1; i < len(indices); i++ {
		if indices[i] < indices[i-1] {
			t.Errorf("indices decrease at %d: %d < %d", i, indices[i], indices[i-1])
		}
	}

	// A ladder capped below the schedule's own depth tops out at its own
	// maximum level.
	capped, err := s.NoiseIndices(2, 10)
	if err != nil {
		t.Fatalf("NoiseIndices capped failed: %v", err)
	}
	if len(capped) != 3 {
		t.Fatalf("len(capped) = %d, want 3", len(capped))
	}
	if capped[0] != -1 || capped[1] != 4 || capped[2] != 9 {
		t.Errorf("capped ladder = %v, want [-1 4 9]", capped)
	}
}

func TestNoiseIndicesExactWhenDense(t *testing.T) {
	s, err := NewSigmoidSchedule(10, DefaultSigmoidStart, DefaultSigmoidEnd, DefaultSigmoidTau)
	if err != nil {
		t.Fatalf("NewSigmoidSchedule failed: %v", err)
	}

	// One ladder rung per schedule step degenerates to consecutive levels.
	indices, err := s.NoiseIndices(10, 10)
	if err != nil {
		t.Fatalf("NoiseIndices failed: %v", err)
	}
	for i, idx := range indices {
		if idx != i-1 {
			t.Errorf("indices[%d] = %d, want %d", i, idx, i-1)
		}
	}
}

func TestNoiseIndicesRejectsBadArgs(t *testing.T) {
	s, err := NewSigmoidSchedule(10, DefaultSigmoidStart, DefaultSigmoidEnd, DefaultSigmoidTau)
	if err != nil {
		t.Fatalf("NewSigmoidSchedule failed: %v", err)
	}

	if _, err := s.NoiseIndices(0, 10); err == nil {
		t.Fatal("NoiseIndices with zero ddim steps succeeded, want error")
	}
	if _, err := s.NoiseIndices(2, 0); err == nil {
		t.Fatal("NoiseIndices with zero max level succeeded, want error")
	}
	if _, err := s.NoiseIndices(2, 11); err == nil {
		t.Fatal("NoiseIndices with max level beyond the schedule succeeded, want error")
	}
}

func TestScheduleTailStaysPositive(t *testing.T) {
	// The raw sigmoid interpolation reaches zero at the last point; the
	// clipped beta chain must keep the stored value above it.
	s, err := NewSigmoidSchedule(100, DefaultSigmoidStart, DefaultSigmoidEnd, DefaultSigmoidTau)
	if err != nil {
		t.Fatalf("NewSigmoidSchedule failed: %v", err)
	}

	tail := s.AlphaCumprod(99)
	if tail <= 0 || math.IsNaN(tail) {
		t.Errorf("AlphaCumprod(99) = %v, want > 0", tail)
	}
}
