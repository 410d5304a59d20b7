package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Load when no checkpoint was saved yet.
var ErrNotFound = errors.New("checkpoint not found")

// Store persists a State.
type Store interface {
	Load() (*State, error)
	Save(state *State) error
	Reset() error
}

// FileStore keeps the checkpoint as an indented JSON file. Writes go to a temp file
// in the same directory followed by a rename, so a crash never leaves a torn file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load() (*State, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to read checkpoint")
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, errors.Wrapf(err, "failed to decode checkpoint %s", f.path)
	}

	if state.Version != Version {
		return nil, errors.Errorf("unsupported checkpoint version %d in %s", state.Version, f.path)
	}

	return &state, nil
}

func (f *FileStore) Save(state *State) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode checkpoint")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create checkpoint directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp checkpoint")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write checkpoint")
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to sync checkpoint")
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close checkpoint")
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrap(err, "failed to replace checkpoint")
	}

	return nil
}

// Reset removes the checkpoint. Removing a missing checkpoint is not an error.
func (f *FileStore) Reset() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove checkpoint")
	}
	return nil
}

// MemoryStore keeps the checkpoint in process memory, used when no checkpoint path is configured.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return nil, ErrNotFound
	}
	return m.state.clone(), nil
}

func (m *MemoryStore) Save(state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = state.clone()
	return nil
}

func (m *MemoryStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = nil
	return nil
}

func (s *State) clone() *State {
	c := *s
	c.Completed = append([]Step(nil), s.Completed...)
	if s.Pending != nil {
		p := *s.Pending
		p.RawTx = append([]byte(nil), s.Pending.RawTx...)
		c.Pending = &p
	}
	return &c
}
