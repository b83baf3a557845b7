package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Dispatcher resolves tokenised lines against the registry and runs them.
type Dispatcher struct {
	reg        *Registry
	aliases    Aliases
	nonVanilla bool
	mw         []Middleware
}

type DispatcherOption func(*Dispatcher)

func WithAliases(a Aliases) DispatcherOption {
	return func(d *Dispatcher) { d.aliases = a }
}

// WithNonVanilla enables commands flagged NonVanilla.
func WithNonVanilla(enabled bool) DispatcherOption {
	return func(d *Dispatcher) { d.nonVanilla = enabled }
}

func WithMiddleware(mw ...Middleware) DispatcherOption {
	return func(d *Dispatcher) { d.mw = append(d.mw, mw...) }
}

func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{reg: reg}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) Registry() *Registry { return d.reg }
func (d *Dispatcher) Aliases() Aliases    { return d.aliases }
func (d *Dispatcher) NonVanilla() bool    { return d.nonVanilla }

// Resolve applies alias expansion and the gating rules without running
// anything. args[0] is the command name without its prefix.
func (d *Dispatcher) Resolve(args []string, origin Origin) (Command, []string, error) {
	if len(args) == 0 {
		return Command{}, nil, fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}
	args, _ = d.aliases.Expand(args)
	name := strings.ToLower(args[0])
	cmd, ok := d.reg.Get(name)
	if !ok {
		return Command{}, nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if cmd.NonVanilla && !d.nonVanilla {
		return Command{}, nil, fmt.Errorf("%w: %s", ErrNonVanillaDisabled, cmd.Name)
	}
	if cmd.ScriptOnly && origin != Script {
		return Command{}, nil, fmt.Errorf("%w: %s", ErrScriptOnly, cmd.Name)
	}
	return cmd, args[1:], nil
}

// Dispatch resolves and runs one command. Synchronous handlers are awaited;
// loop handlers return once the loop is scheduled.
func (d *Dispatcher) Dispatch(ctx context.Context, args []string, origin Origin) error {
	cmd, rest, err := d.Resolve(args, origin)
	if err != nil {
		return err
	}
	h := Chain(cmd.Handler, d.mw...)
	err = h.Run(ctx, &Call{Spec: cmd.Spec, Args: rest, Origin: origin})
	var ue *UsageError
	if errors.As(err, &ue) {
		if ue.Command == "" {
			ue.Command = cmd.Name
		}
		if ue.Usage == "" {
			ue.Usage = cmd.Usage
		}
	}
	return err
}
