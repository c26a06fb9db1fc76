/*
Package file provides the default JSON-file CollectionStore.

PURPOSE:
  Persists each entity type as one JSON array document named
  "<type>.json" under a data directory. This is the on-disk format the
  dashboard has always used, so existing data directories load as-is.

WRITE PROTOCOL:
  1. Encode the collection (2-space indent)
  2. Write to a temp file in the same directory, fsync
  3. Rename over the target

  Readers therefore see the old document or the new one, never a torn write.

CORRUPT DOCUMENTS:
  A document that does not parse is reported as *CorruptCollectionError.
  The next write for that type first moves the bad file aside as
  "<type>.json.corrupt-<unixms>" so the data is kept for inspection.

USAGE:
  st, err := file.New("./data")
  coll, err := st.ReadCollection(ctx, generic.TypeClients)

SEE ALSO:
  - generic/store.go: CollectionStore contract
  - store/open.go: Driver selection
*/
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/warp/dashboard-engine/generic"
)

// Store reads and writes "<dir>/<type>.json".
type Store struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	corrupt map[generic.EntityType]bool
}

// New creates the data directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: empty data directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now, corrupt: make(map[generic.EntityType]bool)}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the document path for a type.
func (s *Store) Path(t generic.EntityType) (string, error) {
	if !t.Valid() {
		return "", &generic.UnknownTypeError{Type: t}
	}
	return filepath.Join(s.dir, string(t)+".json"), nil
}

// ReadCollection loads the document. A missing file is an empty collection.
func (s *Store) ReadCollection(ctx context.Context, t generic.EntityType) (generic.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(t)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return generic.Collection{}, nil
	}
	if err != nil {
		return nil, &generic.StorageError{Op: "read", Type: t, Err: err}
	}
	coll, err := generic.DecodeCollection(data)
	if err != nil {
		s.mu.Lock()
		s.corrupt[t] = true
		s.mu.Unlock()
		return nil, &generic.CorruptCollectionError{Type: t, Err: err}
	}
	return coll, nil
}

// WriteCollection replaces the document via temp file and rename.
func (s *Store) WriteCollection(ctx context.Context, t generic.EntityType, c generic.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(t)
	if err != nil {
		return err
	}
	data, err := generic.EncodeCollection(c)
	if err != nil {
		return &generic.StorageError{Op: "encode", Type: t, Err: err}
	}

	s.mu.Lock()
	quarantine := s.corrupt[t]
	s.mu.Unlock()
	if quarantine {
		aside := path + ".corrupt-" + strconv.FormatInt(s.now().UnixMilli(), 10)
		if err := os.Rename(path, aside); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &generic.StorageError{Op: "quarantine", Type: t, Err: err}
		}
		s.mu.Lock()
		delete(s.corrupt, t)
		s.mu.Unlock()
	}

	if err := writeAtomic(path, data); err != nil {
		return &generic.StorageError{Op: "write", Type: t, Err: err}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
