package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// File stores one JSON document per character in a directory.
type File struct {
	dir string
}

// NewFile creates dir if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(name string) string {
	return filepath.Join(f.dir, url.PathEscape(name)+".json")
}

func (f *File) Load(_ context.Context, name string) (Character, error) {
	b, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return Character{}, ErrNotFound
	}
	if err != nil {
		return Character{}, fmt.Errorf("store: read %s: %w", name, err)
	}
	var c Character
	if err := json.Unmarshal(b, &c); err != nil {
		return Character{}, fmt.Errorf("store: decode %s: %w", name, err)
	}
	return c, nil
}

// Save writes through a temp file so a crash never leaves a torn record.
func (f *File) Save(_ context.Context, c Character) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", c.Name, err)
	}
	tmp, err := os.CreateTemp(f.dir, ".char-*")
	if err != nil {
		return fmt.Errorf("store: save %s: %w", c.Name, err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("store: save %s: %w", c.Name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("store: save %s: %w", c.Name, err)
	}
	if err := os.Rename(tmp.Name(), f.path(c.Name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("store: save %s: %w", c.Name, err)
	}
	return nil
}

func (f *File) Close() error { return nil }
