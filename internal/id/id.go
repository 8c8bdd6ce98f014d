// Package id issues ULIDs. New is for records created in wall-clock time
// (journal runs); Generator is for IDs that must be reproducible inside a
// simulation.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed [32]byte
	if _, err := cryptoRand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[:], uint64(time.Now().UnixNano()))
	}

	mono = ulid.Monotonic(rand.NewChaCha8(seed), 0)
}

// New returns a ULID string (time-sortable identifier) stamped with now.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	return mustNew(time.Now().UTC(), mono)
}

// Generator derives ULIDs from a caller-supplied time and a seeded entropy
// source: the same seed and the same sequence of times give the same IDs.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewGenerator(seed int64) *Generator {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], uint64(seed))
	return &Generator{entropy: ulid.Monotonic(rand.NewChaCha8(key), 0)}
}

// At returns the next ULID stamped with t.
func (g *Generator) At(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return mustNew(t, g.entropy)
}

func mustNew(t time.Time, entropy io.Reader) string {
	var ms uint64
	if !t.Before(time.Unix(0, 0)) {
		ms = ulid.Timestamp(t)
	}
	if ms > ulid.MaxTime() {
		ms = ulid.MaxTime()
	}
	id, err := ulid.New(ms, entropy)
	if err != nil {
		// Only reachable if the monotonic entropy overflows within one millisecond.
		panic(err)
	}
	return id.String()
}
