package environment

import "fmt"

// Store binds an environments file, an active environment name and a vault
// into the persistence collaborator the execution pipeline talks to: it
// hands out snapshots and commits script deltas as a single batch.
type Store struct {
	path    string
	envName string
	vault   Vault
}

// NewStore creates a store for the environments file at path. envName
// selects the active environment; vault may be nil when no secrets are in
// play.
func NewStore(path, envName string, vault Vault) *Store {
	return &Store{path: path, envName: envName, vault: vault}
}

// EnvName returns the active environment name.
func (s *Store) EnvName() string { return s.envName }

// Snapshot captures the active environment's variables.
func (s *Store) Snapshot() (Snapshot, error) {
	f, err := LoadFile(s.path)
	if err != nil {
		return nil, err
	}
	return f.Snapshot(s.envName, s.vault)
}

// ApplyDeltas commits staged variable changes as one batch: the file is
// rewritten once, atomically, or not at all. Deltas for variables flagged
// secret are sealed through the vault before they touch disk; new
// variables land as plain values.
func (s *Store) ApplyDeltas(deltas map[string]string) error {
	if len(deltas) == 0 {
		return nil
	}

	f, err := LoadFile(s.path)
	if err != nil {
		return err
	}

	env := f.Get(s.envName)
	if env == nil {
		f.Environments = append(f.Environments, Environment{
			Name:      s.envName,
			Variables: make(map[string]Variable),
		})
		env = &f.Environments[len(f.Environments)-1]
	}
	if env.Variables == nil {
		env.Variables = make(map[string]Variable)
	}

	for k, v := range deltas {
		existing, ok := env.Variables[k]
		if ok && existing.Secret {
			if s.vault == nil {
				return fmt.Errorf("variable %q is secret but no vault is configured", k)
			}
			sealed, err := s.vault.Seal(v)
			if err != nil {
				return fmt.Errorf("sealing secret %q: %w", k, err)
			}
			env.Variables[k] = Variable{Value: sealed, Secret: true}
			continue
		}
		env.Variables[k] = Variable{Value: v}
	}

	return f.SaveFile(s.path)
}
