package generate

import (
	"math/rand"

	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// noiseSource draws clipped unit gaussian noise for frame initialization
// and context re-noising.
type noiseSource struct {
	dist distuv.Normal
	max  float32
}

func newNoiseSource(seed int64, absMax float64) *noiseSource {
	if seed < 0 {
		seed = rand.Int63()
	}
	return &noiseSource{
		dist: distuv.Normal{Mu: 0, Sigma: 1, Src: xrand.NewSource(uint64(seed))},
		max:  float32(absMax),
	}
}

// sample returns count gaussian draws clamped to [-max, max].
func (n *noiseSource) sample(count int) []float32 {
	out := make([]float32, count)
	for i := range out {
		out[i] = min(max(float32(n.dist.Rand()), -n.max), n.max)
	}
	return out
}
