package htps

import (
	crand "crypto/rand"
	"math/rand"
	"os"
	"strconv"
	"sync"
)

// seedGeneratorFn produces the seed used by newRNG when no explicit seed is
// given. Overridable so tests can force determinism without touching the
// SEED environment variable.
var (
	seedGeneratorFn   func() int64 = defaultSeedGenerator
	seedGeneratorLock sync.Mutex
)

// SetSeedGeneratorFn overrides how newRNG picks a seed when none is passed
// explicitly. Intended for tests.
func SetSeedGeneratorFn(fn func() int64) {
	seedGeneratorLock.Lock()
	defer seedGeneratorLock.Unlock()
	seedGeneratorFn = fn
}

func defaultSeedGenerator() int64 {
	if v := os.Getenv("SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	var b [8]byte
	if _, err := crand.Read(b[:]); err == nil {
		return int64(b[0])<<56 | int64(b[1])<<48 | int64(b[2])<<40 | int64(b[3])<<32 |
			int64(b[4])<<24 | int64(b[5])<<16 | int64(b[6])<<8 | int64(b[7])
	}
	return 1
}

// rng is the single instance-local PRNG a Searcher uses for subsampling and
// temperature>0 tactic selection.
type rng struct {
	r *rand.Rand
}

// newRNG seeds from seedGeneratorFn (SEED env var, or OS entropy as a
// fallback) unless an explicit seed is supplied.
func newRNG(seed *int64) *rng {
	var s int64
	if seed != nil {
		s = *seed
	} else {
		seedGeneratorLock.Lock()
		fn := seedGeneratorFn
		seedGeneratorLock.Unlock()
		s = fn()
	}
	return &rng{r: rand.New(rand.NewSource(s))}
}

// bernoulli reports success with probability p (clamped to [0,1]).
func (g *rng) bernoulli(p float64) bool {
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}
	return g.r.Float64() < p
}

// discrete samples an index from a (possibly unnormalized) non-negative
// weight vector.
func (g *rng) discrete(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	target := g.r.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if target < acc {
			return i
		}
	}
	return len(weights) - 1
}
