package probe

import (
	"math"
	"math/rand"
)

// euclideanDistance computes the L2 distance between two equal-length
// vectors, matching the original source's fold-and-sqrt implementation.
func euclideanDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// randomVector returns a vector of length n with i.i.d. components drawn
// uniformly from [0, 1), matching gen_random_vec in the original source.
func randomVector(rng *rand.Rand, n uint64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.Float64()
	}
	return v
}

// sampleWithoutReplacement draws up to n distinct keys from ids, uniformly,
// without mutating the input slice. Matches the "choose_multiple" semantics
// the original source relies on for batch selection.
func sampleWithoutReplacement(rng *rand.Rand, ids []string, n uint64) []string {
	if n == 0 || len(ids) == 0 {
		return nil
	}
	pool := append([]string(nil), ids...)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if uint64(len(pool)) > n {
		pool = pool[:n]
	}
	return pool
}
