package constellation

import (
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileEntry is one file of an upload. Its source handle is opened on the
// first Read and released by Close. Close is idempotent, so the transport may
// release a part as soon as it has been sent while the engine still releases
// every entry once the request is over.
type FileEntry struct {
	// RelativePath is the filename sent to the cluster.
	RelativePath string

	name string
	src  Source

	mu     sync.Mutex
	rc     io.ReadCloser
	opened bool
	closed bool
}

// NewFileEntry returns an entry sending the file name of src as relativePath.
func NewFileEntry(relativePath string, src Source, name string) *FileEntry {
	return &FileEntry{RelativePath: relativePath, src: src, name: name}
}

func (e *FileEntry) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, os.ErrClosed
	}
	if !e.opened {
		rc, err := e.src.Open(e.name)
		if err != nil {
			return 0, err
		}
		e.rc = rc
		e.opened = true
	}
	return e.rc.Read(p)
}

// Close releases the source handle if it was opened. Subsequent calls are no-ops.
func (e *FileEntry) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.rc == nil {
		return nil
	}
	return e.rc.Close()
}

// osSource opens files relative to a host directory.
type osSource struct {
	dir string
}

func (s osSource) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.dir, filepath.FromSlash(name)))
}
