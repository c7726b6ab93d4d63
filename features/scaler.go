package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler is a per-dimension z-score normalizer. It is fitted
// once over the pooled frames of the whole corpus and is a pure
// function of its inputs afterwards.
//
// Variance uses the population convention (second central moment), so
// statistics line up with features normalized the same way elsewhere in
// the course materials.
type StandardScaler struct {
	mean   []float64
	scale  []float64
	fitted bool
}

// NewStandardScaler creates an unfitted scaler
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit computes per-dimension mean and standard deviation over all
// frames. Dimensions with near-zero variance get scale 1 so constant
// features are centered but not blown up.
func (s *StandardScaler) Fit(frames [][]float64) error {
	if len(frames) == 0 {
		return fmt.Errorf("cannot fit scaler on zero frames")
	}

	dim := len(frames[0])
	if dim == 0 {
		return fmt.Errorf("cannot fit scaler on zero-width frames")
	}
	for i, frame := range frames {
		if len(frame) != dim {
			return fmt.Errorf("inconsistent frame width: frame 0 has %d values, frame %d has %d", dim, i, len(frame))
		}
	}

	s.mean = make([]float64, dim)
	s.scale = make([]float64, dim)

	col := make([]float64, len(frames))
	for d := 0; d < dim; d++ {
		for i, frame := range frames {
			col[i] = frame[d]
		}

		m := stat.Mean(col, nil)
		variance := stat.MomentAbout(2, col, m, nil)
		std := math.Sqrt(variance)
		if std < 1e-10 {
			std = 1.0
		}

		s.mean[d] = m
		s.scale[d] = std
	}

	s.fitted = true
	return nil
}

// Fitted reports whether Fit has succeeded
func (s *StandardScaler) Fitted() bool {
	return s.fitted
}

// Dim returns the fitted feature dimensionality, 0 before fitting
func (s *StandardScaler) Dim() int {
	return len(s.mean)
}

// Mean returns a copy of the fitted per-dimension means
func (s *StandardScaler) Mean() []float64 {
	out := make([]float64, len(s.mean))
	copy(out, s.mean)
	return out
}

// Scale returns a copy of the fitted per-dimension standard deviations
func (s *StandardScaler) Scale() []float64 {
	out := make([]float64, len(s.scale))
	copy(out, s.scale)
	return out
}

// TransformFrame returns a normalized copy of one frame. The input is
// never mutated. An unfitted scaler returns an unchanged copy.
func (s *StandardScaler) TransformFrame(frame []float64) []float64 {
	out := make([]float64, len(frame))
	if !s.fitted || len(frame) != len(s.mean) {
		copy(out, frame)
		return out
	}

	for d, val := range frame {
		out[d] = (val - s.mean[d]) / s.scale[d]
	}
	return out
}

// Transform normalizes a whole frame sequence, returning new storage
func (s *StandardScaler) Transform(frames [][]float64) [][]float64 {
	out := make([][]float64, len(frames))
	for i, frame := range frames {
		out[i] = s.TransformFrame(frame)
	}
	return out
}
