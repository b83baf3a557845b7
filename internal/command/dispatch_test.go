package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	calls []*Call
}

func (r *recorder) handler() HandlerFunc {
	return func(_ context.Context, c *Call) error {
		r.calls = append(r.calls, c)
		return nil
	}
}

func newTestDispatcher(t *testing.T, nonVanilla bool, aliases map[string]string) (*Dispatcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	reg := NewRegistry()
	reg.MustRegister(Spec{Name: "follow", Usage: "<matches> <range>"}, rec.handler())
	reg.MustRegister(Spec{Name: "smartFollow", Usage: "<matches> <range>", NonVanilla: true}, rec.handler())
	reg.MustRegister(Spec{Name: "wait", Usage: "<seconds>", ScriptOnly: true}, rec.handler())
	reg.MustRegister(Spec{Name: "send", Usage: "<message...>"}, rec.handler())
	a, err := NewAliases(aliases)
	require.NoError(t, err)
	return NewDispatcher(reg, WithAliases(a), WithNonVanilla(nonVanilla), WithMiddleware(Recover(), Logging(zap.NewNop()))), rec
}

func TestDispatch_CaseInsensitiveLookup(t *testing.T) {
	d, rec := newTestDispatcher(t, true, nil)
	require.NoError(t, d.Dispatch(context.Background(), []string{"SMARTFOLLOW", "$name=bob", "3"}, Operator))
	require.Len(t, rec.calls, 1)
	require.Equal(t, "smartFollow", rec.calls[0].Spec.Name)
	require.Equal(t, []string{"$name=bob", "3"}, rec.calls[0].Args)
}

func TestDispatch_AliasExpandsOnce(t *testing.T) {
	d, rec := newTestDispatcher(t, false, map[string]string{
		"fb":     "follow $name=bob",
		"follow": "send looped",
		"loop":   "fb 4",
	})
	require.NoError(t, d.Dispatch(context.Background(), []string{"FB", "3"}, Operator))
	require.Equal(t, "follow", rec.calls[0].Spec.Name)
	require.Equal(t, []string{"$name=bob", "3"}, rec.calls[0].Args)

	// An alias whose expansion names another alias is not re-resolved.
	err := d.Dispatch(context.Background(), []string{"loop"}, Operator)
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDispatch_Gating(t *testing.T) {
	d, rec := newTestDispatcher(t, false, nil)
	ctx := context.Background()

	require.ErrorIs(t, d.Dispatch(ctx, []string{"nope"}, Operator), ErrUnknownCommand)
	for _, name := range []string{"optcmd", "CMD", "tmp", "tasks"} {
		require.ErrorIs(t, d.Dispatch(ctx, []string{name}, Operator), ErrUnknownCommand, name)
	}
	require.ErrorIs(t, d.Dispatch(ctx, []string{"smartfollow", "x", "1"}, Operator), ErrNonVanillaDisabled)
	require.ErrorIs(t, d.Dispatch(ctx, []string{"wait", "1"}, Operator), ErrScriptOnly)
	require.ErrorIs(t, d.Dispatch(ctx, []string{"wait", "1"}, Remote), ErrScriptOnly)
	require.NoError(t, d.Dispatch(ctx, []string{"wait", "1"}, Script))
	require.Len(t, rec.calls, 1)
}

func TestDispatch_UsageErrorFilled(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Spec{Name: "dig", Usage: "<x> <y> <z>"}, func(context.Context, *Call) error {
		return Usagef("x must be a number")
	})
	d := NewDispatcher(reg)
	err := d.Dispatch(context.Background(), []string{"dig", "a"}, Operator)
	var ue *UsageError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "x must be a number. Usage: .dig <x> <y> <z>", err.Error())
}

func TestDispatch_RecoverMiddleware(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Spec{Name: "boom"}, func(context.Context, *Call) error { panic("kaboom") })
	d := NewDispatcher(reg, WithMiddleware(Recover()))
	err := d.Dispatch(context.Background(), []string{"boom"}, Operator)
	require.ErrorIs(t, err, ErrPanic)
	require.Contains(t, err.Error(), "kaboom")
}

func TestRegistry_RejectsReservedAndDuplicates(t *testing.T) {
	reg := NewRegistry()
	h := HandlerFunc(func(context.Context, *Call) error { return nil })
	require.ErrorIs(t, reg.Register(Spec{Name: "Tasks"}, h), ErrReservedName)
	require.NoError(t, reg.Register(Spec{Name: "look"}, h))
	require.ErrorIs(t, reg.Register(Spec{Name: "LOOK"}, h), ErrDuplicateName)
	require.Error(t, reg.Register(Spec{Name: "two words"}, h))

	names := []string{}
	for _, c := range reg.All() {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"look"}, names)
}

func TestAliases_Errors(t *testing.T) {
	_, err := NewAliases(map[string]string{"x": "   "})
	require.Error(t, err)
	a, err := NewAliases(map[string]string{"Go": `.send "hi there"`})
	require.NoError(t, err)
	target, ok := a.Target("go")
	require.True(t, ok)
	require.Equal(t, "send", target)
	out, ok := a.Expand([]string{"GO", "now"})
	require.True(t, ok)
	require.Equal(t, []string{"send", "hi there", "now"}, out)
}
