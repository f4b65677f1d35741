package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var (
	level  atomic.Int64
	output atomic.Pointer[io.Writer]
)

func init() {
	level.Store(int64(log.InfoLevel))
}

// SetLevel sets the level used by every logger created afterwards. It
// accepts the names understood by charmbracelet/log ("debug", "info", ...).
func SetLevel(name string) error {
	l, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	level.Store(int64(l))
	return nil
}

// SetOutput redirects loggers created afterwards; nil restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		output.Store(nil)
		return
	}
	output.Store(&w)
}

func writer() io.Writer {
	if w := output.Load(); w != nil {
		return *w
	}
	return os.Stderr
}

func NewHandler(name string) slog.Handler {
	return log.NewWithOptions(writer(), log.Options{
		ReportTimestamp: true,
		Prefix:          name,
		Level:           log.Level(level.Load()),
	})
}

func New(name string) *slog.Logger {
	return slog.New(NewHandler(name))
}

func NewContext(ctx context.Context, name string) context.Context {
	return IntoContext(ctx, New(name))
}

type ctxKey struct{}

// IntoContext adds a logger to a context. Use FromContext to
// pull the logger out.
func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns a logger from a context.Context;
// if the passed context is nil, we return the default slog
// logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		v := ctx.Value(ctxKey{})
		if v == nil {
			return slog.Default()
		}
		return v.(*slog.Logger)
	}

	return slog.Default()
}

// SubLogger derives a new logger from an existing one by appending a suffix
// to its prefix.
func SubLogger(base *slog.Logger, suffix string) *slog.Logger {
	if cl, ok := base.Handler().(*log.Logger); ok {
		prefix := cl.GetPrefix()
		if prefix != "" {
			prefix = prefix + "/" + suffix
		} else {
			prefix = suffix
		}
		return slog.New(NewHandler(prefix))
	}

	return slog.New(NewHandler(suffix))
}
