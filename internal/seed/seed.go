// Package seed establishes deterministic random state for every
// pseudo-random subsystem in the training pipeline. Each subsystem draws
// from a named source; Everything resets all of them from a single seed so
// a run is reproducible end to end. Hash-order-dependent behavior is avoided
// structurally: code that iterates maps for output sorts its keys.
package seed

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// #region state

var (
	mu      sync.Mutex
	current int64
	sources = make(map[string]*rand.Rand)
)

// #endregion state

// #region everything

// Everything seeds every registered pseudo-random source from the given
// seed. Sources created later inherit the same seed, so call order does not
// matter. Idempotent: calling twice with the same seed restores the same
// streams. Must be invoked before model construction and before each run.
func Everything(s int64) {
	mu.Lock()
	defer mu.Unlock()
	current = s
	for name, r := range sources {
		r.Seed(subSeed(name, s))
	}
}

// #endregion everything

// #region source

// Source returns the deterministic random source for a named subsystem
// (e.g. "model-init", "data-shuffle"). The source is created on first use,
// seeded from the active seed and the subsystem name.
func Source(name string) *rand.Rand {
	mu.Lock()
	defer mu.Unlock()
	if r, ok := sources[name]; ok {
		return r
	}
	r := rand.New(rand.NewSource(subSeed(name, current)))
	sources[name] = r
	return r
}

// subSeed derives a per-subsystem seed so distinct subsystems get distinct,
// reproducible streams.
func subSeed(name string, s int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return s ^ int64(h.Sum64())
}

// #endregion source
