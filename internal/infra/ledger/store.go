package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type fileState struct {
	CallsToday int    `json:"calls_today"`
	ResetDate  string `json:"reset_date"`
}

// FileStore persists the day counter as a small JSON state file.
// Writes go through a temp file + rename so a crash mid-write never leaves
// a truncated state behind.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path, creating the parent
// directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load returns the recorded usage for day, or zero when the state file is
// missing or belongs to an earlier day.
func (s *FileStore) Load(day string) (int, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read state file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return 0, fmt.Errorf("parse state file: %w", err)
	}
	if state.ResetDate != day {
		return 0, nil
	}
	return state.CallsToday, nil
}

// Save records the usage for day.
func (s *FileStore) Save(day string, used int) error {
	data, err := json.Marshal(fileState{CallsToday: used, ResetDate: day})
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// MemoryStore keeps the counter in memory only. Used in tests and for runs
// where cross-process persistence is not wanted.
type MemoryStore struct {
	day  string
	used int
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(day string) (int, error) {
	if s.day != day {
		return 0, nil
	}
	return s.used, nil
}

func (s *MemoryStore) Save(day string, used int) error {
	s.day = day
	s.used = used
	return nil
}
