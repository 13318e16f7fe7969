package audio

import (
	"encoding/binary"
	"math"
	"math/cmplx"
)

const (
	// DefaultWindowSize is the number of samples analysed per tick.
	DefaultWindowSize = 512

	// Band limits as a fraction of the positive-frequency bins. The 10%–40%
	// slice approximates the speech formant range for common sample rates.
	bandLowFraction  = 0.10
	bandHighFraction = 0.40

	// energyScale maps normalized band RMS onto a 0–255 range so thresholds
	// stay comparable to byte-valued analyser output.
	energyScale = 255.0
)

// DecodePCM16 converts little-endian 16-bit PCM bytes into samples in [-1, 1].
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float64 {
	n := len(data) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		samples[i] = float64(v) / 32768.0
	}
	return samples
}

// Analyser computes band-limited energy from raw audio frames, one value per
// frame tick. It is a read-only consumer of the capture stream.
type Analyser struct {
	windowSize int
	window     []complex128
}

// NewAnalyser creates an analyser with the given FFT window size, which must
// be a power of two. Zero selects DefaultWindowSize.
func NewAnalyser(windowSize int) *Analyser {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Analyser{
		windowSize: windowSize,
		window:     make([]complex128, windowSize),
	}
}

// BandEnergy returns the RMS magnitude of the speech band of one frame,
// scaled to 0–255. Frames shorter than the window are zero-padded; longer
// frames are truncated to the window.
func (a *Analyser) BandEnergy(samples []float64) float64 {
	for i := range a.window {
		if i < len(samples) {
			a.window[i] = complex(samples[i], 0)
		} else {
			a.window[i] = 0
		}
	}
	fft(a.window)

	half := a.windowSize / 2
	lo := int(float64(half) * bandLowFraction)
	hi := int(float64(half) * bandHighFraction)
	if hi <= lo {
		hi = lo + 1
	}

	var sum float64
	for k := lo; k < hi; k++ {
		mag := 2.0 * cmplx.Abs(a.window[k]) / float64(a.windowSize)
		sum += mag * mag
	}
	rms := math.Sqrt(sum / float64(hi-lo))
	return math.Min(energyScale, rms*energyScale)
}

// fft performs an in-place radix-2 Cooley-Tukey transform. len(x) must be a
// power of two.
func fft(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wl := cmplx.Exp(complex(0, angle))
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			for k := 0; k < length/2; k++ {
				u := x[start+k]
				v := x[start+k+length/2] * w
				x[start+k] = u + v
				x[start+k+length/2] = u - v
				w *= wl
			}
		}
	}
}
