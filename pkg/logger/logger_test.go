package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "logs", "app.log")
	errOut := filepath.Join(dir, "logs", "error.log")

	log, err := NewLogger(
		WithLevel("debug"),
		WithOutputPaths([]string{out}),
		WithErrorPaths([]string{errOut}),
		WithField("service", "card-ocr"),
	)
	require.NoError(t, err)

	log.Info("upload accepted", String("filename", "card.png"))
	log.Error("extraction failed")
	require.NoError(t, log.Sync())

	app, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(app), "upload accepted")
	assert.Contains(t, string(app), `"service":"card-ocr"`)

	errs, err := os.ReadFile(errOut)
	require.NoError(t, err)
	assert.Contains(t, string(errs), "extraction failed")
	assert.NotContains(t, string(errs), "upload accepted")
}

func TestNewLoggerBadLevel(t *testing.T) {
	_, err := NewLogger(WithLevel("loud"), WithOutputPaths([]string{"stdout"}), WithErrorPaths(nil))
	assert.Error(t, err)
}

func TestTestLoggerSharesEntries(t *testing.T) {
	l := NewTestLogger()
	child := l.Named("session").With(String("session_id", "abc"))

	child.Info("processing started")
	l.Warn("root")

	entries := l.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "session", entries[0].Logger)
	assert.Len(t, entries[0].Fields, 1)
	assert.True(t, l.HasMessage("WARN", "root"))

	l.Clear()
	assert.Empty(t, l.GetEntries())
}

func TestFromContext(t *testing.T) {
	l := NewTestLogger()
	cl := NewContextLogger(l)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithSessionID(ctx, "sess-1")
	cl.FromContext(ctx).Info("hello")

	entries := l.GetEntries()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Fields, 2)
	assert.Equal(t, "req-1", RequestID(ctx))
}
