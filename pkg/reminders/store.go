package reminders

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const storeFileMode = 0o600

// Store persists the scheduled reminder list.
type Store interface {
	Load() ([]Reminder, error)
	Save([]Reminder) error
}

// FileStore keeps reminders as an indented JSON array, rewritten atomically
// through a temp file and rename on every save.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns an empty list when the file does not exist yet.
func (s *FileStore) Load() ([]Reminder, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reminders file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var out []Reminder
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode reminders file: %w", err)
	}
	return out, nil
}

func (s *FileStore) Save(reminders []Reminder) error {
	if reminders == nil {
		reminders = []Reminder{}
	}
	data, err := json.MarshalIndent(reminders, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reminders: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create reminders dir: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".reminders-*.json")
	if err != nil {
		return fmt.Errorf("create temp reminders file: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp reminders file: %w", err)
	}
	if err := tempFile.Chmod(storeFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp reminders file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp reminders file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace reminders file: %w", err)
	}
	cleanup = false
	return nil
}
