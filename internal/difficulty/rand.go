package difficulty

import "math/rand/v2"

// RandSource supplies the randomness used for initial variation and
// mid-band adjustments. *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
	// Float64 returns a uniform float in [0.0, 1.0).
	Float64() float64
}

type systemRand struct{}

func (systemRand) IntN(n int) int   { return rand.IntN(n) }
func (systemRand) Float64() float64 { return rand.Float64() }

// SystemRand returns a RandSource backed by the goroutine-safe top-level
// math/rand/v2 generator.
func SystemRand() RandSource {
	return systemRand{}
}

// SeededRand returns a deterministic RandSource. It is not safe for
// concurrent use.
func SeededRand(seed uint64) RandSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// uniformInt returns a uniform integer in [-bound, +bound].
func uniformInt(r RandSource, bound int) int {
	if bound <= 0 {
		return 0
	}
	return r.IntN(2*bound+1) - bound
}

// uniformFloat returns a uniform float in [-bound, +bound).
func uniformFloat(r RandSource, bound float64) float64 {
	return (2*r.Float64() - 1) * bound
}
