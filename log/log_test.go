package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubLogger_AppendsPrefix(t *testing.T) {
	base := New("pfbuild")
	sub := SubLogger(base, "executor")

	cl, ok := sub.Handler().(*log.Logger)
	require.True(t, ok)
	assert.Equal(t, "pfbuild/executor", cl.GetPrefix())
}

func TestSubLogger_UnknownHandler(t *testing.T) {
	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	sub := SubLogger(base, "server")

	cl, ok := sub.Handler().(*log.Logger)
	require.True(t, ok)
	assert.Equal(t, "server", cl.GetPrefix())
}

func TestContextRoundTrip(t *testing.T) {
	l := New("test")
	ctx := IntoContext(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestSetLevelAndOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		_ = SetLevel("info")
	})

	require.NoError(t, SetLevel("warn"))
	l := New("quiet")
	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	assert.Error(t, SetLevel("loud"))
}
