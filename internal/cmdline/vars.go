package cmdline

import (
	"sort"
	"sync"
)

// Lookup resolves a variable name.
type Lookup interface {
	Get(name string) (string, bool)
}

// Vars is the process-wide variable store used by %name% substitution.
type Vars struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewVars() *Vars {
	return &Vars{m: map[string]string{}}
}

func (v *Vars) Get(name string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.m[name]
	return s, ok
}

func (v *Vars) Set(name, value string) {
	v.mu.Lock()
	v.m[name] = value
	v.mu.Unlock()
}

// Unset removes name and reports whether it was defined.
func (v *Vars) Unset(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.m[name]
	delete(v.m, name)
	return ok
}

// Names returns the defined names in sorted order.
func (v *Vars) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.m))
	for k := range v.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidName reports whether s may be used as a variable name.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return false
		}
	}
	return true
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-' || c == '.'
}
