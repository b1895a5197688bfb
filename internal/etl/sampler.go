package etl

import (
	"math/rand"

	"accidentes-platform/internal/models"
)

// Default sampling parameters, matching the published dataset snapshot.
const (
	DefaultSampleSize = 100
	DefaultSeed       = 42
)

// Sample draws at most n records uniformly at random without replacement,
// seeded so that the same (input, n, seed) triple always yields the same
// subset in the same positions. When the input has fewer than n records the
// whole input is returned; under-fill is not an error. The returned slice is
// always a copy and its positions carry no meaning from the source dataset.
func Sample(rows []models.Accident, n int, seed int64) []models.Accident {
	if n < 0 {
		n = 0
	}
	if len(rows) < n {
		n = len(rows)
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(rows))

	out := make([]models.Accident, n)
	for i := 0; i < n; i++ {
		out[i] = rows[perm[i]]
	}
	return out
}
