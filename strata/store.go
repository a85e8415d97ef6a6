package strata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidKey indicates a key that would escape the storage root.
var ErrInvalidKey = errors.New("invalid key: escapes storage root")

// -----------------------------------------------------------------------------
// Filesystem Store
// -----------------------------------------------------------------------------

// fsStore implements Store using the local filesystem.
type fsStore struct {
	root string
}

// NewFS creates a filesystem-backed Store rooted at the given directory.
// The directory must exist.
//
// Consistency: Immediate read-after-write on local filesystems.
func NewFS(root string) (Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, os.ErrNotExist
	}
	return &fsStore{root: root}, nil
}

func (f *fsStore) Get(_ context.Context, key string) ([]byte, error) {
	fullPath, err := f.safePathForKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (f *fsStore) GetPartial(_ context.Context, key string, ranges []ByteRange) ([][]byte, error) {
	fullPath, err := f.safePathForKey(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	return readRangesAt(file, uint64(info.Size()), key, ranges)
}

// readRangesAt resolves each range against total and reads the
// corresponding bytes from src. A read that comes back short (the file
// shrank after the size probe) fails the whole request; a zero-filled
// buffer is never returned.
func readRangesAt(src io.ReaderAt, total uint64, key string, ranges []ByteRange) ([][]byte, error) {
	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		start, end, err := r.Resolve(total)
		if err != nil {
			return nil, err
		}
		b := make([]byte, end-start)
		n, err := src.ReadAt(b, int64(start))
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading range %s of %s: %w", r, key, err)
		}
		if n != len(b) {
			return nil, fmt.Errorf("reading range %s of %s: short read, %d of %d bytes", r, key, n, len(b))
		}
		out[i] = b
	}
	return out, nil
}

func (f *fsStore) Set(_ context.Context, key string, value []byte) error {
	fullPath, err := f.safePathForKey(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, value, 0o644)
}

func (f *fsStore) Erase(_ context.Context, key string) error {
	fullPath, err := f.safePathForKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *fsStore) List(_ context.Context, prefix string) ([]string, error) {
	searchPath, err := f.safePathForPrefix(prefix)
	if err != nil {
		return nil, err
	}
	var keys []string

	err = filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			relPath, err := filepath.Rel(f.root, path)
			if err != nil {
				return err
			}
			keys = append(keys, filepath.ToSlash(relPath))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (f *fsStore) safePathForKey(key string) (string, error) {
	cleaned := filepath.Clean(key)
	if cleaned == "." || key == "" {
		return "", ErrInvalidKey
	}
	if filepath.IsAbs(cleaned) {
		return "", ErrInvalidKey
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}

	fullPath := filepath.Join(f.root, cleaned)

	absRoot, err := filepath.Abs(f.root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}

	return fullPath, nil
}

func (f *fsStore) safePathForPrefix(prefix string) (string, error) {
	if prefix == "" {
		return f.root, nil
	}

	cleaned := filepath.Clean(prefix)
	if cleaned == "." {
		return f.root, nil
	}
	if filepath.IsAbs(cleaned) {
		return "", ErrInvalidKey
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}

	return filepath.Join(f.root, cleaned), nil
}

// -----------------------------------------------------------------------------
// Memory Store
// -----------------------------------------------------------------------------

// memoryStore implements Store using an in-memory map.
type memoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an in-memory Store.
//
// Consistency: Immediate.
// Memory is safe for concurrent use.
func NewMemory() Store {
	return &memoryStore{
		data: make(map[string][]byte),
	}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	normalized, valid := normalizeKey(key)
	if !valid {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	data, exists := m.data[normalized]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return dataCopy, nil
}

func (m *memoryStore) GetPartial(_ context.Context, key string, ranges []ByteRange) ([][]byte, error) {
	normalized, valid := normalizeKey(key)
	if !valid {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	data, exists := m.data[normalized]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}
	return extractRanges(data, ranges)
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte) error {
	normalized, valid := normalizeKey(key)
	if !valid {
		return ErrInvalidKey
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	m.mu.Lock()
	m.data[normalized] = valueCopy
	m.mu.Unlock()

	return nil
}

func (m *memoryStore) Erase(_ context.Context, key string) error {
	normalized, valid := normalizeKey(key)
	if !valid {
		return ErrInvalidKey
	}

	m.mu.Lock()
	delete(m.data, normalized)
	m.mu.Unlock()

	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]string, error) {
	normalized, valid := normalizeKeyPrefix(prefix)
	if !valid {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for key := range m.data {
		if strings.HasPrefix(key, normalized) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func normalizeKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}

	cleaned := filepath.Clean(key)
	cleaned = filepath.ToSlash(cleaned)
	cleaned = strings.TrimPrefix(cleaned, "/")

	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || cleaned == "." {
		return "", false
	}

	return cleaned, true
}

func normalizeKeyPrefix(prefix string) (string, bool) {
	if prefix == "" {
		return "", true
	}

	cleaned := filepath.Clean(prefix)
	cleaned = filepath.ToSlash(cleaned)
	cleaned = strings.TrimPrefix(cleaned, "/")

	if cleaned == "." {
		return "", true
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}

	return cleaned, true
}
