package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func nop() HandlerFunc { return func(context.Context, *Call) error { return nil } }

func TestRun_CommitsOnSuccess(t *testing.T) {
	reg := NewRegistry()
	err := Run(reg, "owo", func(st *Stage) error {
		require.NoError(t, st.Register(Spec{Name: "owo"}, nop()))
		require.NoError(t, st.Register(Spec{Name: "uwu"}, nop()))
		return nil
	})
	require.NoError(t, err)
	require.True(t, reg.Has("owo"))
	require.True(t, reg.Has("UWU"))
}

func TestRun_FailureLeavesTableUntouched(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Spec{Name: "send"}, nop())

	err := Run(reg, "broken", func(st *Stage) error {
		require.NoError(t, st.Register(Spec{Name: "first"}, nop()))
		return errors.New("setup failed")
	})
	require.ErrorContains(t, err, "broken: setup failed")
	require.False(t, reg.Has("first"))

	err = Run(reg, "panicky", func(st *Stage) error {
		_ = st.Register(Spec{Name: "second"}, nop())
		panic("bad plugin")
	})
	require.ErrorIs(t, err, ErrPanic)
	require.False(t, reg.Has("second"))
	require.Len(t, reg.All(), 1)
}

func TestStage_RejectsCoreAndReservedNames(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Spec{Name: "send"}, nop())
	st := NewStage(reg, "p")
	require.ErrorIs(t, st.Register(Spec{Name: "Send"}, nop()), ErrDuplicateName)
	require.ErrorIs(t, st.Register(Spec{Name: "optcmd"}, nop()), ErrReservedName)
	require.NoError(t, st.Register(Spec{Name: "mine"}, nop()))
	require.ErrorIs(t, st.Register(Spec{Name: "MINE"}, nop()), ErrDuplicateName)
	require.Error(t, st.Register(Spec{Name: "x"}, nil))
	require.Equal(t, []string{"mine"}, st.Staged())
}
