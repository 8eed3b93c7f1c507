package internal

import (
	"context"
	"io"
	"time"

	"github.com/davidmdm/ansi"
)

type verboseKey struct{}

func WithVerboseFlag(ctx context.Context, verbose *bool) context.Context {
	return context.WithValue(ctx, verboseKey{}, verbose)
}

func Debug(ctx context.Context) ansi.Terminal {
	verbose, _ := ctx.Value(verboseKey{}).(*bool)
	if verbose == nil || !*verbose {
		return ansi.Terminal{Writer: io.Discard}
	}
	return ansi.Terminal{Writer: Stderr(ctx)}
}

func DebugTimer(ctx context.Context, msg string) func() {
	start := time.Now()
	Debug(ctx).Printf("start: %s\n", msg)
	return func() {
		Debug(ctx).Printf("done:  %s: %s\n\n", msg, time.Since(start))
	}
}
