package jitter

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/pkg/errors"
)

// Generator produces uniformly distributed integers. It is safe for
// concurrent use.
type Generator struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New seeds a PCG source from crypto/rand.
func New() *Generator {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(err)
	}
	src := rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
	return &Generator{r: rand.New(src)}
}

// NewWithSource wraps an existing source.
func NewWithSource(src rand.Source) *Generator {
	return &Generator{r: rand.New(src)}
}

// Delay returns a value uniformly distributed over [min, max], both ends
// inclusive.
func (g *Generator) Delay(min, max int) (int, error) {
	if min < 0 || max < 0 {
		return 0, errors.Errorf("delay bounds must be non-negative (min=%d max=%d)", min, max)
	}
	if min > max {
		return 0, errors.Errorf("delay min %d exceeds max %d", min, max)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return min + g.r.IntN(max-min+1), nil
}

// Pick returns an index in [0, n). n must be positive.
func (g *Generator) Pick(n int) int {
	if n <= 0 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.r.IntN(n)
}
