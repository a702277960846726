package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileStore keeps one "<player id>.sav" file per player under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a FileStore rooted at it.
//
// Postcondition: Returns a FileStore or an error if dir cannot be created.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating save dir %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(playerID uuid.UUID) string {
	return filepath.Join(s.dir, playerID.String()+".sav")
}

// Load reads the save file of playerID.
func (s *FileStore) Load(ctx context.Context, playerID uuid.UUID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(playerID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSaveNotFound
		}
		return nil, fmt.Errorf("reading save %s: %w", playerID, err)
	}
	return data, nil
}

// Save replaces the save file of playerID atomically via a temporary file and
// rename.
func (s *FileStore) Save(ctx context.Context, playerID uuid.UUID, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, playerID.String()+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp save: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(record); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp save: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp save: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(playerID)); err != nil {
		return fmt.Errorf("replacing save %s: %w", playerID, err)
	}
	return nil
}
