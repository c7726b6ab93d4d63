package features

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// MelFeatureKey is the TrackSet key computed log-mel tracks are stored
// under
const MelFeatureKey = "melspec"

// DefaultSampleRate is the PCM rate audio is decoded to before log-mel
// computation
const DefaultSampleRate = 16000

// MelTrackParams configures log-mel feature track computation
type MelTrackParams struct {
	SampleRate    int     `json:"sample_rate"`     // PCM sample rate in Hz
	Resolution    float64 `json:"resolution"`      // seconds per output frame (hop)
	NumMelFilters int     `json:"num_mel_filters"` // mel filter bank size (default: 26)
	WindowSize    int     `json:"window_size"`     // analysis window in samples (default: next pow2 >= hop)
	LowFreq       float64 `json:"low_freq"`        // low frequency bound (default: 0)
	HighFreq      float64 `json:"high_freq"`       // high frequency bound (default: sampleRate/2)
}

// MelTrack computes a log-mel energy FeatureTrack from raw PCM at the
// region-extraction resolution. It covers the files the course ships
// without precomputed embeddings: the output plugs straight into a
// TrackSet under a "melspec" key.
type MelTrack struct {
	params     MelTrackParams
	hopSize    int
	filterBank [][]float64
	window     []float64
}

// NewMelTrack creates a log-mel track computer for the given sample
// rate, producing one frame per resolution seconds
func NewMelTrack(sampleRate int, resolution float64) (*MelTrack, error) {
	return NewMelTrackWithParams(MelTrackParams{
		SampleRate: sampleRate,
		Resolution: resolution,
	})
}

// NewMelTrackWithParams creates a log-mel track computer with custom
// parameters, filling zero values with defaults
func NewMelTrackWithParams(params MelTrackParams) (*MelTrack, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", params.SampleRate)
	}
	if params.Resolution <= 0 {
		params.Resolution = DefaultResolution
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = 26
	}
	if params.HighFreq <= 0 {
		params.HighFreq = float64(params.SampleRate) / 2.0
	}

	hopSize := int(math.Round(params.Resolution * float64(params.SampleRate)))
	if hopSize <= 0 {
		return nil, fmt.Errorf("resolution %g too small for sample rate %d", params.Resolution, params.SampleRate)
	}

	if params.WindowSize <= 0 {
		params.WindowSize = nextPowerOfTwo(hopSize)
	}
	if params.WindowSize < hopSize {
		return nil, fmt.Errorf("window size %d smaller than hop %d", params.WindowSize, hopSize)
	}

	mt := &MelTrack{
		params:  params,
		hopSize: hopSize,
		window:  hannWindow(params.WindowSize),
	}
	mt.filterBank = createMelFilterBank(
		params.NumMelFilters,
		params.WindowSize,
		params.SampleRate,
		params.LowFreq,
		params.HighFreq,
	)
	if len(mt.filterBank) == 0 {
		return nil, fmt.Errorf("failed to create mel filter bank")
	}

	return mt, nil
}

// SampleRate returns the PCM rate the computer expects
func (mt *MelTrack) SampleRate() int {
	return mt.params.SampleRate
}

// HopSize returns the hop in samples between output frames
func (mt *MelTrack) HopSize() int {
	return mt.hopSize
}

// NumFrames returns how many frames Compute will produce for n samples
func (mt *MelTrack) NumFrames(n int) int {
	if n < mt.params.WindowSize {
		return 0
	}
	return (n-mt.params.WindowSize)/mt.hopSize + 1
}

// Compute produces the (T, NumMelFilters) log-mel track for one
// recording. Frame i covers [i*Resolution, (i+1)*Resolution) like every
// other FeatureTrack.
func (mt *MelTrack) Compute(samples []float64) (FeatureTrack, error) {
	numFrames := mt.NumFrames(len(samples))
	if numFrames == 0 {
		return nil, fmt.Errorf("recording too short: %d samples, need at least %d", len(samples), mt.params.WindowSize)
	}

	windowSize := mt.params.WindowSize
	track := make(FeatureTrack, numFrames)
	buf := make([]float64, windowSize)

	for i := 0; i < numFrames; i++ {
		start := i * mt.hopSize
		for k := 0; k < windowSize; k++ {
			buf[k] = samples[start+k] * mt.window[k]
		}

		spectrum := fft.FFTReal(buf)

		// Power spectrum over positive frequencies
		power := make([]float64, windowSize/2+1)
		for k := range power {
			mag := cmplx.Abs(spectrum[k])
			power[k] = mag * mag
		}

		mel := applyFilterBank(power, mt.filterBank)

		// Log with floor to avoid log(0)
		frame := make([]float64, len(mel))
		for k, v := range mel {
			if v > 0 {
				frame[k] = math.Log(v)
			} else {
				frame[k] = math.Log(1e-10)
			}
		}
		track[i] = frame
	}

	return track, nil
}

// hzToMel converts frequency in Hz to mel scale
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts mel scale to frequency in Hz
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// createMelFilterBank builds triangular mel-scale filters over the
// positive-frequency bins of an fftSize transform
func createMelFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	if numFilters <= 0 || fftSize <= 0 {
		return nil
	}

	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)

	melPoints := make([]float64, numFilters+2)
	melStep := (highMel - lowMel) / float64(numFilters+1)
	for i := range melPoints {
		melPoints[i] = lowMel + float64(i)*melStep
	}

	binPoints := make([]int, len(melPoints))
	for i, mel := range melPoints {
		hz := melToHz(mel)
		binPoints[i] = int(math.Floor((float64(fftSize)+1.0)*hz/float64(sampleRate) + 0.5))
		binPoints[i] = min(binPoints[i], fftSize/2)
	}

	filterBank := make([][]float64, numFilters)
	for i := range filterBank {
		filterBank[i] = make([]float64, fftSize/2+1)
	}

	for m := 1; m <= numFilters; m++ {
		leftBin := binPoints[m-1]
		centerBin := binPoints[m]
		rightBin := binPoints[m+1]

		for k := leftBin; k < centerBin && k < len(filterBank[m-1]); k++ {
			if centerBin != leftBin {
				filterBank[m-1][k] = float64(k-leftBin) / float64(centerBin-leftBin)
			}
		}
		for k := centerBin; k < rightBin && k < len(filterBank[m-1]); k++ {
			if rightBin != centerBin {
				filterBank[m-1][k] = float64(rightBin-k) / float64(rightBin-centerBin)
			}
		}
	}

	return filterBank
}

// applyFilterBank applies the mel filter bank to a power spectrum
func applyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	melSpectrum := make([]float64, len(filterBank))
	for i, filter := range filterBank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}
	return melSpectrum
}

// hannWindow builds an n-point Hann window
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1.0
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// nextPowerOfTwo returns the smallest power of two >= n
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
