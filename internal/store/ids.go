package store

import "github.com/google/uuid"

// RunIDGenerator assigns run ids to plans written without one.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so run ids sort
// by creation time even across stores.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Option configures a Store.
type Option func(*Store)

// WithRunIDs replaces the UUIDv7 run id generator. Tests use it to get
// stable run ids.
func WithRunIDs(gen RunIDGenerator) Option {
	return func(s *Store) {
		s.ids = gen
	}
}
