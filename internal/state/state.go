package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/gofrs/flock"
)

// lockTimeout bounds how long Save waits for the advisory lock.
const lockTimeout = 5 * time.Second

// ProcessedSet holds the numbers of PRs a review was already requested for.
type ProcessedSet map[int]struct{}

// NewProcessedSet returns a set containing numbers.
func NewProcessedSet(numbers ...int) ProcessedSet {
	s := make(ProcessedSet, len(numbers))
	for _, n := range numbers {
		s.Add(n)
	}
	return s
}

func (s ProcessedSet) Contains(number int) bool {
	_, ok := s[number]
	return ok
}

func (s ProcessedSet) Add(number int) {
	s[number] = struct{}{}
}

func (s ProcessedSet) Len() int {
	return len(s)
}

// Numbers returns the members in ascending order.
func (s ProcessedSet) Numbers() []int {
	numbers := make([]int, 0, len(s))
	for n := range s {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	return numbers
}

// StateError is returned when persisted state exists but cannot be read or written.
type StateError struct {
	Path string
	Err  error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.Path, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// Store persists a ProcessedSet as a JSON array of PR numbers.
// Concurrent runs against the same file are not supported; the lock only
// keeps two writers from interleaving a single save.
type Store struct {
	Path string
}

// NewStore returns a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// DefaultPath returns processed.json inside the per-user data directory.
func DefaultPath() (string, error) {
	dataDir, err := userDataDir(runtime.GOOS)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "nixpr", "processed.json"), nil
}

// userDataDir resolves the data directory for goos.
// On macOS and Windows it matches os.UserConfigDir (~/Library/Application Support
// and %AppData%); elsewhere it is $XDG_DATA_HOME or ~/.local/share.
func userDataDir(goos string) (string, error) {
	switch goos {
	case "darwin", "ios", "windows":
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolving data directory: %w", err)
		}
		return dir, nil
	}

	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share"), nil
}

// Load reads the persisted set. A missing file yields an empty set.
func (s *Store) Load() (ProcessedSet, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewProcessedSet(), nil
	}
	if err != nil {
		return nil, &StateError{Path: s.Path, Err: fmt.Errorf("reading: %w", err)}
	}

	var numbers *[]int
	if err := json.Unmarshal(data, &numbers); err != nil {
		return nil, &StateError{Path: s.Path, Err: fmt.Errorf("parsing: %w", err)}
	}
	if numbers == nil {
		return nil, &StateError{Path: s.Path, Err: errors.New("parsing: expected a JSON array of PR numbers, got null")}
	}
	return NewProcessedSet(*numbers...), nil
}

// Save overwrites the persisted state with set.
func (s *Store) Save(set ProcessedSet) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return &StateError{Path: s.Path, Err: fmt.Errorf("creating directory: %w", err)}
	}

	data, err := json.MarshalIndent(set.Numbers(), "", "  ")
	if err != nil {
		return &StateError{Path: s.Path, Err: fmt.Errorf("serializing: %w", err)}
	}

	err = withLock(s.Path, func() error {
		return atomicWriteFile(s.Path, data, 0644)
	})
	if err != nil {
		return &StateError{Path: s.Path, Err: err}
	}
	return nil
}

// Clear removes every member from the persisted state.
func (s *Store) Clear() error {
	return s.Save(NewProcessedSet())
}

// withLock acquires an exclusive lock on path.lock, runs fn, then releases.
func withLock(path string, fn func() error) error {
	lockPath := path + ".lock"
	fileLock := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring lock on %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("timed out acquiring lock on %s", lockPath)
	}
	defer fileLock.Unlock()

	return fn()
}

// atomicWriteFile writes data to a temp file then renames it into place,
// so a crash mid-write leaves the previous state intact.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing: %w", err)
	}
	return nil
}
