package raptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure FileStore implements the interface.
var _ driven.TreeStore = (*FileStore)(nil)

// TreeFile is the file name of the persisted tree.
const TreeFile = "raptor_tree.json"

// FileStore persists the tree as a JSON object keyed by node id.
type FileStore struct {
	path string
}

// NewFileStore creates a store under dir. An empty dir uses ~/.recall/data.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".recall", "data")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create tree directory: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, TreeFile)}, nil
}

// Path returns the tree file path.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes the tree to a temporary file and renames it into place.
func (s *FileStore) Save(_ context.Context, nodes map[string]domain.TreeNode) error {
	data, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("marshal tree: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), TreeFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write tree: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync tree: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tree: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace tree: %w", err)
	}
	return nil
}

// Load reads the tree. A missing file is domain.ErrNotFound; a file that
// does not decode is an error and is left in place.
func (s *FileStore) Load(_ context.Context) (map[string]domain.TreeNode, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read tree: %w", err)
	}

	var nodes map[string]domain.TreeNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("decode tree %s: %w", s.path, err)
	}
	return nodes, nil
}
