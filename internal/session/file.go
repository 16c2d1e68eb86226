package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	dirPermissions  = 0o700
	filePermissions = 0o600
)

// FileStore keeps the session in a JSON file readable only by its owner.
// Writes go to a temporary file that is renamed over the target, so readers
// never see a partial session.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, s Session) error {
	b, err := encode(s)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(b)
}

// write replaces the file contents. Callers hold f.mu.
func (f *FileStore) write(b []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := tmp.Chmod(filePermissions); err != nil {
		tmp.Close() //nolint:errcheck // error path
		return fmt.Errorf("setting session file mode: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close() //nolint:errcheck // error path
		return fmt.Errorf("writing session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // error path
		return fmt.Errorf("syncing session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing session file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Current implements Store.
func (f *FileStore) Current(_ context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// CompareAndSwap implements Store. The swap is atomic with respect to other
// users of this FileStore, not to other processes sharing the file.
func (f *FileStore) CompareAndSwap(_ context.Context, match func(Session) bool, next *Session) (bool, error) {
	var b []byte
	if next != nil {
		var err error
		if b, err = encode(*next); err != nil {
			return false, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cur, err := f.read()
	if errors.Is(err, ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !match(*cur) {
		return false, nil
	}
	if next == nil {
		err = f.remove()
	} else {
		err = f.write(b)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// read loads and decodes the file. Callers hold f.mu.
func (f *FileStore) read() (*Session, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	s, err := decode(b)
	if err != nil {
		if rmErr := f.remove(); rmErr != nil {
			return nil, rmErr
		}
		return nil, err
	}
	return s, nil
}

// Clear implements Store.
func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remove()
}

func (f *FileStore) remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}
