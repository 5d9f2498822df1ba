// Package gain scales MSP signal vectors.
package gain

import "math"

// MinDB is the level treated as silence.
const MinDB = -200.0

// DbToLinear converts decibels to amplitude. Levels at or below MinDB are 0.
func DbToLinear(db float64) float64 {
	if db <= MinDB {
		return 0
	}
	return math.Pow(10, db/20)
}

// LinearToDb converts amplitude to decibels. Amplitudes at or below 0 read
// as MinDB.
func LinearToDb(linear float64) float64 {
	if linear <= 0 {
		return MinDB
	}
	return 20 * math.Log10(linear)
}

// Ramp moves from its current gain to a target linearly over one vector,
// so changing the gain between blocks does not click.
type Ramp struct {
	current float64
	primed  bool
}

// Current returns the gain reached at the end of the last vector.
func (r *Ramp) Current() float64 { return r.current }

// Reset jumps straight to g.
func (r *Ramp) Reset(g float64) {
	r.current = g
	r.primed = true
}

// Apply multiplies src by the ramped gain into dst. dst and src may be the
// same slice. The first call after construction applies target directly.
func (r *Ramp) Apply(dst, src []float64, target float64) {
	n := min(len(dst), len(src))
	if !r.primed {
		r.Reset(target)
	}
	if n == 0 {
		return
	}
	if r.current == target {
		for i := 0; i < n; i++ {
			dst[i] = src[i] * target
		}
		return
	}
	step := (target - r.current) / float64(n)
	g := r.current
	for i := 0; i < n; i++ {
		g += step
		dst[i] = src[i] * g
	}
	r.current = target
}
