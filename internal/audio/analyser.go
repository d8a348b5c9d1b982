package audio

import (
	"math"
	"sync"
)

// Analyser derives normalized frequency magnitudes from the most recent PCM
// samples, for mic-level visualization. Safe for concurrent use: the capture
// reader writes while the session's level loop reads.
type Analyser struct {
	mu       sync.Mutex
	buf      []int16
	writePos int
	filled   bool
	bins     int
}

// NewAnalyser creates an analyser over a window of the given sample count,
// producing bins magnitude buckets per snapshot.
func NewAnalyser(window, bins int) *Analyser {
	if window < 256 {
		window = 256
	}
	if bins <= 0 {
		bins = 32
	}
	return &Analyser{buf: make([]int16, window), bins: bins}
}

// Write appends samples to the analysis window.
func (a *Analyser) Write(pcm []int16) {
	a.mu.Lock()
	for _, s := range pcm {
		a.buf[a.writePos] = s
		a.writePos++
		if a.writePos == len(a.buf) {
			a.writePos = 0
			a.filled = true
		}
	}
	a.mu.Unlock()
}

// Levels returns one normalized 0..1 magnitude per bin over the current
// window, or nil when no audio has been written yet.
func (a *Analyser) Levels() []float64 {
	a.mu.Lock()
	if !a.filled && a.writePos == 0 {
		a.mu.Unlock()
		return nil
	}
	window := make([]int16, len(a.buf))
	start := a.writePos
	if !a.filled {
		window = window[:a.writePos]
		start = 0
	}
	for i := range window {
		window[i] = a.buf[(start+i)%len(a.buf)]
	}
	a.mu.Unlock()

	n := len(window)
	out := make([]float64, a.bins)
	for k := 0; k < a.bins; k++ {
		// Single-bin DFT magnitude; bins span the lower half of the spectrum
		// where voice energy lives.
		freq := float64(k+1) / float64(2*a.bins)
		var re, im float64
		for i, s := range window {
			angle := 2 * math.Pi * freq * float64(i)
			v := float64(s) / 32768.0
			re += v * math.Cos(angle)
			im -= v * math.Sin(angle)
		}
		mag := 2 * math.Sqrt(re*re+im*im) / float64(n)
		if mag > 1 {
			mag = 1
		}
		out[k] = mag
	}
	return out
}

// reset clears the window so stale audio never leaks into a new session.
func (a *Analyser) reset() {
	a.mu.Lock()
	a.writePos = 0
	a.filled = false
	for i := range a.buf {
		a.buf[i] = 0
	}
	a.mu.Unlock()
}
