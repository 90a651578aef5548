package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cadventory/internal/database"
)

// ManifestFile is the manifest's name inside the hidden directory.
const ManifestFile = "library.toml"

// Manifest records the identity of a library on disk.
type Manifest struct {
	Name          string    `toml:"name"`
	Root          string    `toml:"root"`
	Created       time.Time `toml:"created"`
	SchemaVersion int       `toml:"schema_version"`
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// loadOrCreateManifest reads the manifest, creating it on first use. A
// non-empty name overrides the stored one and is written back.
func loadOrCreateManifest(hiddenDir, root, name string) (*Manifest, error) {
	path := filepath.Join(hiddenDir, ManifestFile)

	m, err := readManifest(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if name == "" {
			name = filepath.Base(root)
		}
		m = &Manifest{
			Name:          name,
			Root:          root,
			Created:       time.Now().UTC().Truncate(time.Second),
			SchemaVersion: database.SchemaVersion,
		}
		return m, writeManifest(path, m)
	case err != nil:
		return nil, err
	}

	dirty := false
	if name != "" && name != m.Name {
		m.Name = name
		dirty = true
	}
	if m.Name == "" {
		m.Name = filepath.Base(root)
		dirty = true
	}
	if m.Root != root {
		// The library directory was moved or mounted elsewhere.
		m.Root = root
		dirty = true
	}
	if dirty {
		return m, writeManifest(path, m)
	}
	return m, nil
}
