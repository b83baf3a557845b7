package command

import (
	"fmt"
	"sort"
	"strings"

	"voxelcraft.ai/vcterm/internal/cmdline"
)

// Aliases maps a short name to a command and leading literal arguments.
// Expansion happens once; the expansion's first word is never looked up as
// an alias again.
type Aliases struct {
	m map[string][]string
}

// NewAliases parses alias definitions such as {"f": "follow $type=AGENT"}.
func NewAliases(defs map[string]string) (Aliases, error) {
	a := Aliases{m: make(map[string][]string, len(defs))}
	for name, expansion := range defs {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return Aliases{}, fmt.Errorf("alias with empty name")
		}
		words := cmdline.Split(expansion)
		if len(words) == 0 {
			return Aliases{}, fmt.Errorf("alias %q: empty expansion", name)
		}
		words[0] = strings.ToLower(strings.TrimPrefix(words[0], "."))
		a.m[key] = words
	}
	return a, nil
}

// Expand rewrites args if args[0] names an alias.
func (a Aliases) Expand(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}
	words, ok := a.m[strings.ToLower(args[0])]
	if !ok {
		return args, false
	}
	out := make([]string, 0, len(words)+len(args)-1)
	out = append(out, words...)
	return append(out, args[1:]...), true
}

// Names returns the alias names sorted.
func (a Aliases) Names() []string {
	out := make([]string, 0, len(a.m))
	for k := range a.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Target returns the command an alias points at.
func (a Aliases) Target(name string) (string, bool) {
	words, ok := a.m[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return words[0], true
}
