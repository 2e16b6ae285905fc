package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// OutputName is the file name of the produced PDF inside an entry.
const OutputName = "output.pdf"

var (
	// ErrInvalidID is returned for ids that are not canonical UUIDs.
	ErrInvalidID = errors.New("invalid entry id")
	// ErrNotFound is returned when an entry directory does not exist (never created or swept).
	ErrNotFound = errors.New("entry not found")
)

// Workspace is the shared upload root. Every request gets its own entry directory below it.
type Workspace struct {
	root string
}

// Entry is one request's directory. Paths inside it are always generated here.
type Entry struct {
	ID      string
	Dir     string
	Created time.Time
}

// NewWorkspace creates root if it does not exist.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

// Create makes a fresh, uniquely named entry.
func (w *Workspace) Create() (*Entry, error) {
	id := uuid.NewString()
	dir := filepath.Join(w.root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create entry dir: %w", err)
	}
	return &Entry{ID: id, Dir: dir, Created: time.Now()}, nil
}

// Open returns an existing entry. The id must be a UUID, so no client input reaches the path.
func (w *Workspace) Open(id string) (*Entry, error) {
	u, err := uuid.Parse(id)
	if err != nil || u.String() != id {
		return nil, ErrInvalidID
	}
	dir := filepath.Join(w.root, id)
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat entry: %w", err)
	}
	if !info.IsDir() {
		return nil, ErrNotFound
	}
	return &Entry{ID: id, Dir: dir, Created: info.ModTime()}, nil
}

// SaveUpload writes the raw bytes of upload number index and returns the file path.
// ext comes from content sniffing; ".bin" is used when nothing was recognised.
func (e *Entry) SaveUpload(index int, ext string, data []byte) (string, error) {
	if ext == "" {
		ext = ".bin"
	}
	p := filepath.Join(e.Dir, fmt.Sprintf("upload_%03d%s", index+1, ext))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("save upload %d: %w", index+1, err)
	}
	return p, nil
}

// OutputPath is where the produced PDF lives.
func (e *Entry) OutputPath() string { return filepath.Join(e.Dir, OutputName) }

// HasOutput reports whether the PDF has been written.
func (e *Entry) HasOutput() bool {
	info, err := os.Stat(e.OutputPath())
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes the entry and everything in it.
func (e *Entry) Remove() error { return os.RemoveAll(e.Dir) }
