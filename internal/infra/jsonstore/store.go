// Package jsonstore provides a JSON file-based document store and the typed
// repositories built on it.
package jsonstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/runoshun/git-delegate/internal/domain"
)

// storeData represents the JSON file structure.
// Fields are ordered to minimize memory padding.
type storeData struct {
	Collections map[string]map[string]json.RawMessage `json:"collections"`
	Seqs        map[string]int                        `json:"seqs"`
}

// Store implements domain.DocumentStore using a single JSON file.
// Readers take a shared flock, writers an exclusive one, so several CLI
// processes can share a data root.
type Store struct {
	path     string
	lockPath string
}

// Ensure Store implements DocumentStore.
var _ domain.DocumentStore = (*Store)(nil)

// New creates a new Store for the given file path.
// The file does not need to exist; it will be created on first write.
func New(path string) *Store {
	return &Store{
		path:     path,
		lockPath: path + ".lock",
	}
}

// Get decodes the document stored under key into v.
func (s *Store) Get(collection, key string, v any) (bool, error) {
	var found bool
	err := s.withLock(func(data *storeData) error {
		raw, ok := data.Collections[collection][key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("decode %s/%s: %w", collection, key, err)
		}
		found = true
		return nil
	})
	return found, err
}

// Set encodes v and stores it under key, replacing any previous document.
func (s *Store) Set(collection, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return s.withLockWrite(func(data *storeData) error {
		docs := data.Collections[collection]
		if docs == nil {
			docs = make(map[string]json.RawMessage)
			data.Collections[collection] = docs
		}
		docs[key] = raw
		return nil
	})
}

// Delete removes a document. Missing documents are not an error.
func (s *Store) Delete(collection, key string) error {
	return s.withLockWrite(func(data *storeData) error {
		delete(data.Collections[collection], key)
		return nil
	})
}

// Keys returns the sorted keys of a collection.
func (s *Store) Keys(collection string) ([]string, error) {
	var keys []string
	err := s.withLock(func(data *storeData) error {
		for k := range data.Collections[collection] {
			keys = append(keys, k)
		}
		return nil
	})
	slices.Sort(keys)
	return keys, err
}

// NextSeq returns the next value of the collection's sequence, starting at 1.
func (s *Store) NextSeq(collection string) (int, error) {
	var n int
	err := s.withLockWrite(func(data *storeData) error {
		n = data.Seqs[collection] + 1
		data.Seqs[collection] = n
		return nil
	})
	return n, err
}

// scan decodes every document of a collection while holding a single
// shared lock. fn receives the key and raw document.
func (s *Store) scan(collection string, fn func(key string, raw json.RawMessage) error) error {
	return s.withLock(func(data *storeData) error {
		for k, raw := range data.Collections[collection] {
			if err := fn(k, raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// withLock executes fn with a shared (read) lock.
func (s *Store) withLock(fn func(*storeData) error) error {
	lock, err := s.acquireLock(syscall.LOCK_SH)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	data, err := s.read()
	if err != nil {
		return err
	}

	return fn(data)
}

// withLockWrite executes fn with an exclusive (write) lock and writes the result.
func (s *Store) withLockWrite(fn func(*storeData) error) error {
	lock, err := s.acquireLock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	data, err := s.read()
	if err != nil {
		return err
	}

	if err := fn(data); err != nil {
		return err
	}

	return s.write(data)
}

func (s *Store) acquireLock(lockType int) (*os.File, error) {
	dir := filepath.Dir(s.lockPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lock, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(lock.Fd()), lockType); err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	return lock, nil
}

func (s *Store) releaseLock(lock *os.File) {
	_ = syscall.Flock(int(lock.Fd()), syscall.LOCK_UN)
	_ = lock.Close()
}

// read loads the store file. A missing file is an empty store.
func (s *Store) read() (*storeData, error) {
	data := &storeData{}
	content, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read store file: %w", err)
	default:
		if err := json.Unmarshal(content, data); err != nil {
			return nil, fmt.Errorf("parse store file: %w", err)
		}
	}

	if data.Collections == nil {
		data.Collections = make(map[string]map[string]json.RawMessage)
	}
	if data.Seqs == nil {
		data.Seqs = make(map[string]int)
	}
	return data, nil
}

func (s *Store) write(data *storeData) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store data: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath) // Clean up
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
