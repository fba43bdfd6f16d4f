// Package rngsplit derives per-solver, per-worker random sources from
// a single top-level seed (§5 "Random module side-effects → per-solver
// RNG"). Every solver owns its own *rand.Rand; nothing in this module
// reads the process-wide generator.
package rngsplit

import (
	"hash/fnv"
	"math/rand"
	"strconv"
)

// Split derives a deterministic child seed from a parent seed and an
// index, following the spec's `child_seed = hash(parent_seed, index)`
// expansion rule (§5, §9). FNV-1a is used because it is already in the
// standard library and is good enough for seed derivation (this is not
// a cryptographic use).
func Split(parentSeed int64, index int) int64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatInt(parentSeed, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(index)))
	return int64(h.Sum64())
}

// New returns a *rand.Rand seeded deterministically from seed. Callers
// should never share one *rand.Rand across goroutines; derive a child
// with Split for every worker/batch member instead.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Child returns a fresh *rand.Rand derived from parentSeed and index,
// suitable for a single batched candidate or multi-start run.
func Child(parentSeed int64, index int) *rand.Rand {
	return New(Split(parentSeed, index))
}
