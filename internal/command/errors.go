package command

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCommand     = errors.New("unknown command")
	ErrNonVanillaDisabled = errors.New("non-vanilla commands are disabled")
	ErrScriptOnly         = errors.New("command can only be used in scripts")

	ErrReservedName  = errors.New("reserved command name")
	ErrDuplicateName = errors.New("command already registered")
)

// reserved names are internal entries of the command table and can never be
// dispatched or registered.
var reserved = map[string]struct{}{
	"optcmd": {},
	"cmd":    {},
	"tmp":    {},
	"tasks":  {},
}

func IsReserved(name string) bool {
	_, ok := reserved[strings.ToLower(name)]
	return ok
}

// UsageError reports invalid arguments. The dispatcher fills in the command
// name and usage when a handler leaves them empty.
type UsageError struct {
	Command string
	Usage   string
	Reason  string
}

func (e *UsageError) Error() string {
	u := "Usage: ." + e.Command
	if e.Usage != "" {
		u += " " + e.Usage
	}
	if e.Reason == "" {
		return u
	}
	return e.Reason + ". " + u
}

// Usagef builds a UsageError with a formatted reason.
func Usagef(format string, args ...any) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}

// ErrUsage is a UsageError without a reason.
func ErrUsage() error { return &UsageError{} }
