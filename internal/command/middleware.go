package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Middleware wraps a handler.
type Middleware func(Handler) Handler

// Chain applies mw so that mw[0] is the outermost wrapper.
func Chain(h Handler, mw ...Middleware) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// ErrPanic marks a handler that panicked.
var ErrPanic = errors.New("panic")

// Recover turns a handler panic into an error so one command cannot take the
// client down.
func Recover() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, call *Call) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %s: %v", ErrPanic, call.Spec.Name, r)
				}
			}()
			return next.Run(ctx, call)
		})
	}
}

// Logging records every invocation at debug level.
func Logging(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, call *Call) error {
			start := time.Now()
			err := next.Run(ctx, call)
			logger.Debug("command",
				zap.String("name", call.Spec.Name),
				zap.Strings("args", call.Args),
				zap.Stringer("origin", call.Origin),
				zap.Duration("took", time.Since(start)),
				zap.Error(err),
			)
			return err
		})
	}
}
