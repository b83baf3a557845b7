// Package command holds the command table and the dispatcher that gates
// and invokes entries from it.
package command

import (
	"context"
	"strings"
)

// Origin tells the dispatcher where a line came from.
type Origin int

const (
	Operator Origin = iota
	Script
	Remote
	Hook
)

func (o Origin) String() string {
	switch o {
	case Operator:
		return "operator"
	case Script:
		return "script"
	case Remote:
		return "remote"
	case Hook:
		return "hook"
	}
	return "unknown"
}

// Spec is the immutable description of a command.
type Spec struct {
	Name        string
	Usage       string
	Description string

	// ScriptOnly commands are rejected unless dispatched from a script.
	ScriptOnly bool
	// NonVanilla commands need features a plain server may not offer and
	// can be disabled through configuration.
	NonVanilla bool
	// Hidden commands are not offered by autocomplete.
	Hidden bool
}

// Key is the lookup key for the command.
func (s Spec) Key() string { return strings.ToLower(s.Name) }

// Call is one resolved invocation.
type Call struct {
	Spec   Spec
	Args   []string
	Origin Origin
}

// Arg returns the i-th argument or "".
func (c *Call) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

type Handler interface {
	Run(ctx context.Context, call *Call) error
}

type HandlerFunc func(ctx context.Context, call *Call) error

func (f HandlerFunc) Run(ctx context.Context, call *Call) error { return f(ctx, call) }

// Command pairs a spec with its handler.
type Command struct {
	Spec
	Handler Handler
}
