// Package prefs keeps small client preferences in a YAML file, such as the
// rater remembered between runs.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// File is a string key/value store backed by one YAML document. Every Set
// rewrites the file through a temporary file and a rename.
type File struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// Open reads path. A missing file is an empty store.
func Open(path string) (*File, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	f := &File{path: path, values: map[string]string{}}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("read prefs: %w", err)
	}
	if err := yaml.Unmarshal(data, &f.values); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	if f.values == nil {
		f.values = map[string]string{}
	}
	return f, nil
}

// DefaultPath is the preferences file under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".vauva.yaml"
	}
	return filepath.Join(dir, "vauva", "prefs.yaml")
}

// Get returns the value stored under key.
func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

// Set stores value under key and writes the file.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := maps.Clone(f.values)
	next[key] = value
	if err := f.write(next); err != nil {
		return err
	}
	f.values = next
	return nil
}

// Delete removes key and writes the file.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.values[key]; !ok {
		return nil
	}
	next := maps.Clone(f.values)
	delete(next, key)
	if err := f.write(next); err != nil {
		return err
	}
	f.values = next
	return nil
}

func (f *File) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}
