package command

import "fmt"

// Stage collects commands registered by one plugin hook. Nothing reaches the
// registry until Commit.
type Stage struct {
	reg    *Registry
	owner  string
	staged []Command
}

func NewStage(reg *Registry, owner string) *Stage {
	return &Stage{reg: reg, owner: owner}
}

func (s *Stage) Owner() string { return s.owner }

// Register stages a command. Names held by the registry, reserved names and
// names already staged are rejected immediately.
func (s *Stage) Register(spec Spec, h Handler) error {
	key := spec.Key()
	if IsReserved(key) {
		return fmt.Errorf("%w: %s", ErrReservedName, key)
	}
	if s.reg.Has(key) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, key)
	}
	for _, c := range s.staged {
		if c.Key() == key {
			return fmt.Errorf("%w: %s", ErrDuplicateName, key)
		}
	}
	if h == nil {
		return fmt.Errorf("nil handler for %s", key)
	}
	s.staged = append(s.staged, Command{Spec: spec, Handler: h})
	return nil
}

// Staged returns the names waiting for Commit.
func (s *Stage) Staged() []string {
	out := make([]string, len(s.staged))
	for i, c := range s.staged {
		out[i] = c.Key()
	}
	return out
}

// Commit adds all staged commands atomically.
func (s *Stage) Commit() error {
	if len(s.staged) == 0 {
		return nil
	}
	if err := s.reg.registerAll(s.staged); err != nil {
		return err
	}
	s.staged = nil
	return nil
}

// Run calls fn with a fresh stage and commits it only if fn returns nil
// without panicking.
func Run(reg *Registry, owner string, fn func(*Stage) error) (err error) {
	st := NewStage(reg, owner)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %w: %v", owner, ErrPanic, r)
		}
	}()
	if err := fn(st); err != nil {
		return fmt.Errorf("%s: %w", owner, err)
	}
	if err := st.Commit(); err != nil {
		return fmt.Errorf("%s: %w", owner, err)
	}
	return nil
}
