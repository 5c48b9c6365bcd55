package pipeline

import (
	"io/fs"
	"path/filepath"
)

// ArtifactTree summarizes what the generator left in the workspace.
type ArtifactTree struct {
	Root  string
	Files int64
	Dirs  int64
	Bytes int64
}

func (t ArtifactTree) Empty() bool {
	return t.Files == 0
}

// InventoryTree counts regular files, subdirectories and bytes under root.
func InventoryTree(root string) (ArtifactTree, error) {
	tree := ArtifactTree{Root: root}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			if path != root {
				tree.Dirs++
			}
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			tree.Files++
			tree.Bytes += info.Size()
		}
		return nil
	})

	return tree, err
}
