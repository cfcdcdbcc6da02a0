package index

import "math"

// floatSource is an injected PRNG capability, satisfied by *rand.Rand.
// Tests inject a fixed-seed source for determinism; otherwise each Index
// gets its own *rand.Rand seeded from the OS clock (see New).
type floatSource interface {
	Float64() float64
}

// sampleLayer draws the target layer for a new node from the geometric
// distribution implied by ml: floor(-ln(u) * ml), u uniform on (0, 1).
// A sampled u of exactly 0 is clamped to a small epsilon to avoid +Inf.
func sampleLayer(rng floatSource, ml float64) int {
	u := rng.Float64()
	if u == 0 {
		u = 1e-9
	}
	return int(math.Floor(-math.Log(u) * ml))
}
