// Package reporting forwards deployment failures and panics to Sentry.
// With no DSN configured every method is a no-op, so callers never need to
// guard their capture calls.
package reporting

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Options configures error reporting.
type Options struct {
	DSN         string // empty disables reporting
	Environment string
	ServerName  string
}

// Reporter captures errors to Sentry when a DSN is configured.
type Reporter struct {
	enabled bool
}

// NewReporter initializes the Sentry client. An empty DSN yields a disabled
// reporter rather than an error so local setups run without one.
func NewReporter(opts Options) (*Reporter, error) {
	if opts.DSN == "" {
		return &Reporter{}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		ServerName:       opts.ServerName,
		AttachStacktrace: true,
	}); err != nil {
		return nil, fmt.Errorf("initializing sentry: %w", err)
	}

	return &Reporter{enabled: true}, nil
}

// Enabled reports whether events are actually forwarded.
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// CaptureError sends err to Sentry with message (printf-formatted with args)
// attached as a tag. Nil errors are ignored.
func (r *Reporter) CaptureError(err error, message string, args ...any) {
	if !r.Enabled() || err == nil {
		return
	}

	msg := message
	if len(args) > 0 {
		msg = fmt.Sprintf(message, args...)
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		if msg != "" {
			scope.SetTag("log_message", msg)
		}
		sentry.CaptureException(err)
	})
}

// CaptureMessage sends a bare message at the given level.
func (r *Reporter) CaptureMessage(level sentry.Level, message string, args ...any) {
	if !r.Enabled() {
		return
	}

	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		sentry.CaptureMessage(message)
	})
}

// Flush waits up to timeout for buffered events to reach Sentry. Call it
// before process exit; events are sent asynchronously.
func (r *Reporter) Flush(timeout time.Duration) {
	if !r.Enabled() {
		return
	}
	sentry.Flush(timeout)
}
