// Package storage persists encoded save records keyed by player.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrSaveNotFound is returned by Load when the player has no save record.
var ErrSaveNotFound = errors.New("save not found")

// Store loads and saves opaque save records.
type Store interface {
	// Load returns the record for playerID or ErrSaveNotFound.
	Load(ctx context.Context, playerID uuid.UUID) ([]byte, error)
	// Save replaces the record for playerID.
	Save(ctx context.Context, playerID uuid.UUID, record []byte) error
}
