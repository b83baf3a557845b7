package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is the command table keyed by lower-cased name.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: map[string]Command{}}
}

func (r *Registry) check(spec Spec) error {
	key := spec.Key()
	if key == "" || strings.ContainsAny(key, " \t") {
		return fmt.Errorf("invalid command name %q", spec.Name)
	}
	if IsReserved(key) {
		return fmt.Errorf("%w: %s", ErrReservedName, key)
	}
	if _, ok := r.commands[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, key)
	}
	return nil
}

func (r *Registry) Register(spec Spec, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(spec); err != nil {
		return err
	}
	r.commands[spec.Key()] = Command{Spec: spec, Handler: h}
	return nil
}

// MustRegister panics on registration errors. For built-in tables.
func (r *Registry) MustRegister(spec Spec, h HandlerFunc) {
	if err := r.Register(spec, h); err != nil {
		panic(err)
	}
}

// registerAll adds every command or none of them.
func (r *Registry) registerAll(cmds []Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]struct{}{}
	for _, c := range cmds {
		if err := r.check(c.Spec); err != nil {
			return err
		}
		if _, dup := seen[c.Key()]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateName, c.Key())
		}
		seen[c.Key()] = struct{}{}
	}
	for _, c := range cmds {
		r.commands[c.Key()] = c
	}
	return nil
}

// Get looks a command up case-insensitively. Reserved names are never found.
func (r *Registry) Get(name string) (Command, bool) {
	key := strings.ToLower(name)
	if IsReserved(key) {
		return Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[key]
	return c, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// All returns every command sorted by key.
func (r *Registry) All() []Command {
	r.mu.RLock()
	out := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
