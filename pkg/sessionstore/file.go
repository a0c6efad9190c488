package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend persists all entries as one JSON document. Every write goes to
// a temporary file in the same directory which is then renamed over the
// original, so readers see either the old or the new document.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (f *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		return nil, err
	}
	v, ok := data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (f *FileBackend) Put(_ context.Context, entries map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if errors.Is(err, ErrCorruptFile) {
		data = make(map[string][]byte)
	} else if err != nil {
		return err
	}
	for k, v := range entries {
		data[k] = v
	}
	return f.write(data)
}

func (f *FileBackend) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if errors.Is(err, ErrCorruptFile) {
		data = make(map[string][]byte)
	} else if err != nil {
		return err
	}
	for _, k := range keys {
		delete(data, k)
	}
	return f.write(data)
}

func (f *FileBackend) read() (map[string][]byte, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string][]byte), nil
	}
	if err != nil {
		return nil, errors.Join(ErrBackendFailed, err)
	}

	data := make(map[string][]byte)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Join(ErrCorruptFile, err)
	}
	return data, nil
}

func (f *FileBackend) write(data map[string][]byte) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Join(ErrBackendFailed, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Join(ErrBackendFailed, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return errors.Join(ErrBackendFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrBackendFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrBackendFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(ErrBackendFailed, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Join(ErrBackendFailed, fmt.Errorf("replace %s: %w", f.path, err))
	}
	return nil
}
