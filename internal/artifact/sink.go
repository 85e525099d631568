// Package artifact abstracts where reports, plots and result files are
// written so the analysis tools can be exercised against memory in tests.
package artifact

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Sink receives named artifacts. Names are slash-separated and relative to
// the sink's root.
type Sink interface {
	// Create creates or truncates the named artifact.
	Create(name string) (io.WriteCloser, error)

	// WriteFile writes data to the named artifact.
	WriteFile(name string, data []byte) error

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(dir string) error
}

// DirSink writes artifacts below Root on the local filesystem.
type DirSink struct {
	Root string
}

// NewDirSink returns a sink rooted at root, creating the directory.
func NewDirSink(root string) (*DirSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", root, err)
	}
	return &DirSink{Root: root}, nil
}

func (d *DirSink) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact name %q escapes output directory", name)
	}
	p := filepath.Join(d.Root, clean)
	if err := withinRoot(p, d.Root); err != nil {
		return "", fmt.Errorf("artifact name %q: %w", name, err)
	}
	return p, nil
}

// Create creates the named file, making parent directories as needed.
func (d *DirSink) Create(name string) (io.WriteCloser, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return os.Create(p)
}

// WriteFile writes data to the named file.
func (d *DirSink) WriteFile(name string, data []byte) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// MkdirAll creates dir below the root.
func (d *DirSink) MkdirAll(dir string) error {
	p, err := d.path(dir)
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0o755)
}

// MemorySink keeps artifacts in memory.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

func memName(name string) string {
	return filepath.ToSlash(filepath.Clean(name))
}

// Create returns a writer whose contents are stored on Close.
func (m *MemorySink) Create(name string) (io.WriteCloser, error) {
	name = memName(name)
	m.mu.Lock()
	m.files[name] = nil
	m.mu.Unlock()
	return &memWriter{sink: m, name: name}, nil
}

// WriteFile stores a copy of data under name.
func (m *MemorySink) WriteFile(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[memName(name)] = bytes.Clone(data)
	return nil
}

// MkdirAll records dir and its parents.
func (m *MemorySink) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := memName(dir); p != "." && p != "/"; p = filepath.ToSlash(filepath.Dir(p)) {
		m.dirs[p] = true
	}
	return nil
}

// ReadFile returns the stored contents of name.
func (m *MemorySink) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[memName(name)]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return bytes.Clone(data), nil
}

// Names lists stored artifacts in sorted order.
func (m *MemorySink) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.files))
	for n := range m.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasDir reports whether dir was created.
func (m *MemorySink) HasDir(dir string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirs[memName(dir)]
}

type memWriter struct {
	sink *MemorySink
	name string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.files[w.name] = bytes.Clone(w.buf.Bytes())
	return nil
}
