package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const workspaceDirMode = 0o755

type Workspace struct {
	Path string
}

// PrepareWorkspace creates a new empty directory at path. An existing entry at
// path, directory or not, is a collision and is left untouched.
func PrepareWorkspace(path string) (*Workspace, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("workspace path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), workspaceDirMode); err != nil {
		return nil, fmt.Errorf("create workspace parent: %w", err)
	}

	if err := os.Mkdir(absPath, workspaceDirMode); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrWorkspaceCollision, absPath)
		}
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{Path: absPath}, nil
}
