// Package filesystem provides sandboxed, read-only access to a directory tree
// being uploaded. All access goes through an os.Root, so symbolic links that
// escape the tree are never followed.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
)

// ErrNotFound is returned when a file does not exist in the tree.
var ErrNotFound = errors.New("file not found")

// Tree is a directory opened for reading.
type Tree struct {
	root   *os.Root
	logger *slog.Logger
}

// OpenTree opens dir as the root of a Tree. Skipped entries are logged to
// logger, or slog.Default() when nil. The caller must Close it.
func OpenTree(dir string, logger *slog.Logger) (*Tree, error) {
	if logger == nil {
		logger = slog.Default()
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open tree: %w", err)
	}
	return &Tree{root: root, logger: logger}, nil
}

// Open opens a file for reading. name is a slash separated path relative to
// the tree. Returns ErrNotFound if the file does not exist.
func (t *Tree) Open(name string) (io.ReadCloser, error) {
	f, err := t.root.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// Files walks the tree and returns the slash separated relative paths of every
// regular file, in lexical traversal order. Directories are descended
// depth-first in name order. Symbolic links are included only when they
// resolve to a regular file inside the tree; links to directories are not
// followed. Everything else is skipped.
func (t *Tree) Files(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := []string{}

	err := t.walkDir(ctx, ".", &files)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	return files, nil
}

func (t *Tree) walkDir(ctx context.Context, dir string, files *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := fs.ReadDir(t.root.FS(), dir)
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		entryPath := path.Join(dir, entry.Name())

		switch mode := entry.Type(); {
		case mode.IsDir():
			if err := t.walkDir(ctx, entryPath, files); err != nil {
				return err
			}
		case mode.IsRegular():
			*files = append(*files, entryPath)
		case mode&fs.ModeSymlink != 0:
			info, err := t.root.Stat(entryPath)
			if err != nil {
				t.logger.Warn("skipping unresolvable symlink", "path", entryPath, "err", err)
				continue
			}
			if info.Mode().IsRegular() {
				*files = append(*files, entryPath)
			}
		}
	}

	return nil
}

// Close releases the underlying root.
func (t *Tree) Close() error {
	return t.root.Close()
}
