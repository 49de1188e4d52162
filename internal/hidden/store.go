package hidden

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"
)

// FileStore keeps the hidden table as one JSON document:
// {"<owner uuid>": [{"x":..,"y":..,"z":..,"world":".."}], ...}
type FileStore struct {
	Path string

	mu sync.Mutex // serializes writers
}

// Load returns an empty table when the file does not exist yet.
func (s *FileStore) Load() (map[uuid.UUID][]Position, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[uuid.UUID][]Position{}, nil
	}
	if err != nil {
		return nil, err
	}
	var raw map[string][]Position
	if len(b) > 0 {
		if err := sonnet.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Path, err)
		}
	}
	out := make(map[uuid.UUID][]Position, len(raw))
	for k, ps := range raw {
		owner, err := uuid.Parse(k)
		if err != nil {
			return nil, fmt.Errorf("%s: owner %q: %w", s.Path, k, err)
		}
		out[owner] = ps
	}
	return out, nil
}

// Save writes the current contents of c. The snapshot is taken under the
// writer lock so the newest state always lands last.
func (s *FileStore) Save(c *Cache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(c.Snapshot())
}

// SaveAll replaces the file with table.
func (s *FileStore) SaveAll(table map[uuid.UUID][]Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(table)
}

// writeLocked goes through a temp file in the same directory so a crash
// leaves either the old or the new document.
func (s *FileStore) writeLocked(table map[uuid.UUID][]Position) error {
	raw := make(map[string][]Position, len(table))
	for owner, ps := range table {
		raw[owner.String()] = ps
	}
	b, err := sonnet.Marshal(raw)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
