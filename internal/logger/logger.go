package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel accepts logrus level names. Unknown names keep the current level.
func SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		base.SetLevel(lvl)
	}
}

func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

func Debugf(format string, a ...interface{}) {
	base.Debugf(format, a...)
}

func Infof(format string, a ...interface{}) {
	base.Infof(format, a...)
}

func Warnf(format string, a ...interface{}) {
	base.Warnf(format, a...)
}

func Errorf(format string, a ...interface{}) {
	base.Errorf(format, a...)
}

func Fatalf(format string, a ...interface{}) {
	base.Fatalf(format, a...)
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// FromContext returns a logger tagged with the request id carried by ctx.
func FromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(base)
	if id := RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	return entry
}
