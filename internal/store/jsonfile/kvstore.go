// Package jsonfile provides a JSON file-backed key/value store.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hay-kot/storefront/internal/core/kv"
	"github.com/rs/zerolog"
)

// KVFile is the root JSON structure stored on disk.
type KVFile struct {
	Entries map[string]kv.Entry `json:"entries"`
}

// KVStore implements kv.Store using a single JSON file. Every operation
// re-reads the file so that writes from other processes are observed.
type KVStore struct {
	path string
	log  zerolog.Logger
	mu   sync.RWMutex
}

// NewKVStore creates a new JSON file KV store at the given path.
func NewKVStore(path string, log zerolog.Logger) *KVStore {
	return &KVStore{path: path, log: log}
}

// Path returns the data file path.
func (s *KVStore) Path() string {
	return s.path
}

func (s *KVStore) lockPath() string {
	return s.path + ".lock"
}

// withSharedLock executes fn while holding a shared (read) file lock.
// Multiple processes can hold shared locks simultaneously.
func (s *KVStore) withSharedLock(fn func() error) error {
	return s.withFileLock(syscall.LOCK_SH, fn)
}

// withExclusiveLock executes fn while holding an exclusive (write) file lock.
func (s *KVStore) withExclusiveLock(fn func() error) error {
	return s.withFileLock(syscall.LOCK_EX, fn)
}

func (s *KVStore) withFileLock(lockType int, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := syscall.Flock(int(f.Fd()), lockType); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck

	return fn()
}

// Get returns an entry by key. Returns kv.ErrKeyNotFound if not found and
// kv.ErrCorrupt if the file cannot be decoded.
func (s *KVStore) Get(ctx context.Context, key string) (kv.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		entry kv.Entry
		found bool
	)

	err := s.withSharedLock(func() error {
		file, err := s.load()
		if err != nil {
			return err
		}

		entry, found = file.Entries[key]
		return nil
	})
	if err != nil {
		return kv.Entry{}, err
	}

	if !found {
		return kv.Entry{}, kv.ErrKeyNotFound
	}

	return entry, nil
}

// Set creates or updates an entry. If the file on disk is corrupt it is moved
// aside to <path>.corrupt and a fresh file is started.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withExclusiveLock(func() error {
		file, err := s.loadForWrite()
		if err != nil {
			return err
		}

		now := time.Now()
		entry, exists := file.Entries[key]
		if exists {
			entry.Value = value
			entry.UpdatedAt = now
		} else {
			entry = kv.Entry{
				Key:       key,
				Value:     value,
				CreatedAt: now,
				UpdatedAt: now,
			}
		}

		file.Entries[key] = entry
		return s.save(file)
	})
}

// Delete removes an entry by key. Returns kv.ErrKeyNotFound if not found.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var notFound bool

	err := s.withExclusiveLock(func() error {
		file, err := s.loadForWrite()
		if err != nil {
			return err
		}

		if _, ok := file.Entries[key]; !ok {
			notFound = true
			return nil
		}

		delete(file.Entries, key)
		return s.save(file)
	})
	if err != nil {
		return err
	}

	if notFound {
		return kv.ErrKeyNotFound
	}

	return nil
}

// List returns all entries matching the prefix.
func (s *KVStore) List(ctx context.Context, prefix string) ([]kv.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []kv.Entry

	err := s.withSharedLock(func() error {
		file, err := s.load()
		if err != nil {
			return err
		}

		for _, entry := range file.Entries {
			if prefix == "" || strings.HasPrefix(entry.Key, prefix) {
				entries = append(entries, entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// load reads the KV file from disk.
// Returns an empty KVFile if the file doesn't exist.
func (s *KVStore) load() (KVFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return KVFile{Entries: make(map[string]kv.Entry)}, nil
		}
		return KVFile{}, fmt.Errorf("read %s: %w", s.path, err)
	}

	if len(data) == 0 {
		return KVFile{Entries: make(map[string]kv.Entry)}, nil
	}

	var file KVFile
	if err := json.Unmarshal(data, &file); err != nil {
		return KVFile{}, fmt.Errorf("parse %s: %w: %w", s.path, kv.ErrCorrupt, err)
	}

	if file.Entries == nil {
		file.Entries = make(map[string]kv.Entry)
	}

	return file, nil
}

// loadForWrite is load, except that a corrupt file is quarantined and
// replaced by an empty one instead of failing the write.
func (s *KVStore) loadForWrite() (KVFile, error) {
	file, err := s.load()
	if err == nil {
		return file, nil
	}

	if !errors.Is(err, kv.ErrCorrupt) {
		return KVFile{}, err
	}

	backup := s.path + ".corrupt"
	if rerr := os.Rename(s.path, backup); rerr != nil {
		return KVFile{}, fmt.Errorf("quarantine corrupt file: %w", rerr)
	}

	s.log.Warn().Err(err).Str("backup", backup).Msg("corrupt data file moved aside, starting fresh")
	return KVFile{Entries: make(map[string]kv.Entry)}, nil
}

// save writes the KV file to disk atomically.
// Uses write-to-temp-then-rename to prevent corruption from interrupted writes.
func (s *KVStore) save(file KVFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp) // best effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
