package ratelimit

import "math/rand"

// pseudoRand returns a value in [0, 1). Split into its own file so tests
// can observe jitter is applied without needing a deterministic governor.
func pseudoRand() float64 {
	return rand.Float64()
}
