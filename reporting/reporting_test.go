package reporting

import (
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReporter_DisabledWithoutDSN(t *testing.T) {
	reporter, err := NewReporter(Options{})

	require.NoError(t, err)
	require.NotNil(t, reporter)
	assert.False(t, reporter.Enabled())
}

func TestNewReporter_InvalidDSN(t *testing.T) {
	reporter, err := NewReporter(Options{DSN: "not-a-dsn"})

	require.Error(t, err)
	assert.Nil(t, reporter)
	assert.Contains(t, err.Error(), "initializing sentry")
}

func TestNewReporter_ValidDSN(t *testing.T) {
	// A syntactically valid DSN is enough; events are sent asynchronously
	// so no server needs to exist.
	reporter, err := NewReporter(Options{
		DSN:         "https://examplepublickey@localhost/1",
		Environment: "test",
		ServerName:  "deployer-test",
	})

	require.NoError(t, err)
	assert.True(t, reporter.Enabled())

	// None of these may panic.
	reporter.CaptureError(errors.New("deploy failed"), "deploy %s failed", "notion.alive.example")
	reporter.CaptureMessage(sentry.LevelWarning, "unit %s inactive", "webalive-site@notion.service")
	reporter.Flush(10 * time.Millisecond)
}

func TestReporter_DisabledCallsAreNoOps(t *testing.T) {
	reporter, err := NewReporter(Options{})
	require.NoError(t, err)

	reporter.CaptureError(errors.New("boom"), "ignored")
	reporter.CaptureError(nil, "nil error is ignored")
	reporter.CaptureMessage(sentry.LevelError, "ignored")
	reporter.Flush(time.Millisecond)
}

func TestReporter_NilReceiverIsSafe(t *testing.T) {
	var reporter *Reporter

	assert.False(t, reporter.Enabled())
	reporter.CaptureError(errors.New("boom"), "ignored")
	reporter.CaptureMessage(sentry.LevelError, "ignored")
	reporter.Flush(time.Millisecond)
}
