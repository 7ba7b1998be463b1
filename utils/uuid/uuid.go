// Package uuid generates identifiers for requests, submissions, and other stored records.
package uuid

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IDer generates identifiers.
type IDer interface {
	ID() string
}

// UUID generates canonical (hyphenated) random UUIDs.
type UUID struct{}

// NewUUID creates a new UUID ID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// ID generates a new UUID ID.
func (u *UUID) ID() string {
	return uuid.NewString()
}

// Compact generates random UUIDs without hyphens.
// These are safe to use as flat file names and URL path segments.
type Compact struct{}

// NewCompact creates a new compact UUID ID generator.
func NewCompact() *Compact {
	return &Compact{}
}

// ID generates a new 32 character hexadecimal ID.
func (c *Compact) ID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// StaticIDs is an ID generator that cycles through provided IDs.
// Used for deterministic tests.
type StaticIDs struct {
	mu  sync.Mutex
	ids []string
	i   int
}

// NewStaticIDs creates a new static ID generator.
func NewStaticIDs(ids ...string) *StaticIDs {
	return &StaticIDs{ids: ids}
}

// ID returns the next ID, wrapping around at the end.
func (s *StaticIDs) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ids[s.i%len(s.ids)]
	s.i++
	return id
}
