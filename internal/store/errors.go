package store

import "errors"

var (
	// ErrRowOutOfRange means a requested row id exceeds the store size.
	ErrRowOutOfRange = errors.New("section row id out of range")
	// ErrStoreCorrupted means the section table and the embedding index have
	// diverged in size — an unrecoverable invariant violation.
	ErrStoreCorrupted = errors.New("section store and embedding index sizes diverged")
)
