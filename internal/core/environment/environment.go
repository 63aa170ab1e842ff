// Package environment manages named variable sets and their secure values.
package environment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File holds all environments, as stored in environments.yaml.
type File struct {
	Environments []Environment `yaml:"environments"`
}

// Environment represents a named set of variables.
type Environment struct {
	Name      string              `yaml:"name"`
	Variables map[string]Variable `yaml:"variables"`
}

// Variable represents an environment variable value. Secret-flagged values
// are stored sealed and resolved through a Vault.
type Variable struct {
	Value  string `yaml:"value"`
	Secret bool   `yaml:"secret,omitempty"`
}

// Snapshot is an immutable point-in-time view of an environment's variables.
// The execution pipeline captures one snapshot per run and never re-reads
// the environment mid-run.
type Snapshot map[string]string

// Clone returns a mutable working copy of the snapshot.
func (s Snapshot) Clone() map[string]string {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// LoadFile loads environments from a YAML file. A missing file yields an
// empty set, not an error.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("reading environments: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing environments: %w", err)
	}
	return &f, nil
}

// SaveFile writes environments back to disk. The write is atomic: the file
// is replaced wholesale or not at all.
func (f *File) SaveFile(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling environments: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing environments: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing environments file: %w", err)
	}
	return nil
}

// Get returns the named environment, or nil.
func (f *File) Get(name string) *Environment {
	for i := range f.Environments {
		if f.Environments[i].Name == name {
			return &f.Environments[i]
		}
	}
	return nil
}

// Names returns all environment names.
func (f *File) Names() []string {
	names := make([]string, len(f.Environments))
	for i, e := range f.Environments {
		names[i] = e.Name
	}
	return names
}

// Snapshot captures the named environment's variables, resolving
// secret-flagged entries through the vault. An unknown name yields an
// empty snapshot.
func (f *File) Snapshot(envName string, vault Vault) (Snapshot, error) {
	snap := make(Snapshot)
	env := f.Get(envName)
	if env == nil {
		return snap, nil
	}
	for k, v := range env.Variables {
		if v.Secret && vault != nil {
			plain, err := vault.Open(v.Value)
			if err != nil {
				return nil, fmt.Errorf("resolving secret %q: %w", k, err)
			}
			snap[k] = plain
			continue
		}
		snap[k] = v.Value
	}
	return snap, nil
}
