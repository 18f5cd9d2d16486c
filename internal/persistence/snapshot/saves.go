package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultSaveDir = "saves"
	SaveExt        = ".blec"
)

// Saves manages named world saves in a single directory.
type Saves struct {
	Dir string
}

func NewSaves(dir string) Saves {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultSaveDir
	}
	return Saves{Dir: dir}
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid save name %q", name)
	}
	return nil
}

func (s Saves) WorldPath(name string) string {
	return filepath.Join(s.Dir, name+SaveExt)
}

func (s Saves) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}
	st, err := os.Stat(s.WorldPath(name))
	return err == nil && !st.IsDir()
}

func (s Saves) Save(name string, snap SnapshotV1) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := WriteSnapshot(s.WorldPath(name), snap); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (s Saves) Load(name string) (SnapshotV1, error) {
	if err := validName(name); err != nil {
		return SnapshotV1{}, err
	}
	snap, err := ReadSnapshot(s.WorldPath(name))
	if err != nil {
		return snap, fmt.Errorf("load %s: %w", name, err)
	}
	return snap, nil
}

// Delete removes a save. Deleting a missing save is not an error.
func (s Saves) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.Remove(s.WorldPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the names of all saves in the directory, sorted.
func (s Saves) List() ([]string, error) {
	ents, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SaveExt) {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), SaveExt))
	}
	return out, nil
}
