// Package id provides ULID-based identity for sandboxes and realms.
//
// IDs are lexicographically sortable and carry a type prefix so logs
// stay readable (sbx_*, rlm_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SandboxID identifies one sandbox instance
type SandboxID string

// RealmID identifies one realm within a sandbox
type RealmID string

const (
	SandboxPrefix = "sbx"
	RealmPrefix   = "rlm"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator with cryptographically
// secure entropy
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with custom entropy
// source, useful for deterministic tests
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSandboxID generates a new sandbox ID
func NewSandboxID() SandboxID {
	return SandboxID(Default().GenerateWithPrefix(SandboxPrefix))
}

// NewRealmID generates a new realm ID
func NewRealmID() RealmID {
	return RealmID(Default().GenerateWithPrefix(RealmPrefix))
}

func (id SandboxID) String() string { return string(id) }
func (id RealmID) String() string   { return string(id) }

// IsValid checks if an ID string is a prefixed ULID
func IsValid(id string) bool {
	_, rest, found := strings.Cut(id, "_")
	if !found {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}
