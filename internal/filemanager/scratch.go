package filemanager

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Scratch is a temporary directory removed by Close.
type Scratch struct {
	fs   afero.Fs
	Dir  string
	keep bool
}

// NewScratch creates <parent>/<prefix><uuid>.
func NewScratch(fsys afero.Fs, parent, prefix string) (*Scratch, error) {
	dir := filepath.Join(parent, prefix+uuid.NewString())
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	return &Scratch{fs: fsys, Dir: dir}, nil
}

// Keep makes Close leave the directory in place.
func (s *Scratch) Keep() {
	s.keep = true
}

// Close removes the directory unless Keep was called. It is safe to call
// more than once.
func (s *Scratch) Close() error {
	if s == nil || s.keep || s.Dir == "" {
		return nil
	}
	dir := s.Dir
	s.Dir = ""
	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing scratch dir %s: %w", dir, err)
	}
	return nil
}
