package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileName is the state document's name inside a cluster working directory.
const FileName = "state.json"

// Store reads and writes one cluster's state file. Callers must serialize
// access to the same working directory; there is no cross-process locking.
type Store struct {
	path string
}

// NewStore creates a store rooted at the given working directory.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// Path returns the state file location.
func (st *Store) Path() string {
	return st.path
}

// Exists reports whether a state document has been written.
func (st *Store) Exists() bool {
	_, err := os.Stat(st.path)
	return err == nil
}

// Load reads the state document. Unknown fields are ignored for forward
// compatibility with newer tool versions operating on the same file.
func (st *Store) Load() (*ClusterState, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no cluster state at %s (run `dblab up` first): %w", st.path, err)
		}
		return nil, fmt.Errorf("failed to read cluster state: %w", err)
	}

	var s ClusterState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse cluster state %s: %w", st.path, err)
	}
	if s.InfrastructureStatus == "" {
		s.InfrastructureStatus = StatusUnknown
	}
	if s.Hosts == nil {
		s.Hosts = make(map[string][]Host)
	}
	return &s, nil
}

// Save writes the state document, refreshing lastAccessedAt.
func (st *Store) Save(s *ClusterState) error {
	s.touch()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cluster state: %w", err)
	}
	if err := os.WriteFile(st.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write cluster state: %w", err)
	}
	return nil
}

// UpdateHosts replaces the host inventory wholesale and persists the result.
func (st *Store) UpdateHosts(hosts map[string][]Host) error {
	return st.mutate(func(s *ClusterState) {
		s.Hosts = hosts
	})
}

// MarkInfrastructureUp records that provisioning completed.
func (st *Store) MarkInfrastructureUp() error {
	return st.mutate(func(s *ClusterState) {
		s.InfrastructureStatus = StatusUp
	})
}

// MarkInfrastructureDown records that teardown completed. The file itself is
// left in place; deleting it is the caller's decision.
func (st *Store) MarkInfrastructureDown() error {
	return st.mutate(func(s *ClusterState) {
		s.InfrastructureStatus = StatusDown
	})
}

// mutate is a read-modify-write convenience for the single-writer case.
func (st *Store) mutate(fn func(*ClusterState)) error {
	s, err := st.Load()
	if err != nil {
		return err
	}
	fn(s)
	return st.Save(s)
}
