package log

import (
	"testing"

	"github.com/rs/zerolog"
)

// NewTestingLogger returns a logger that writes through t.Log when the test
// binary runs with -v and discards everything otherwise.
func NewTestingLogger(t testing.TB) Logger {
	if !testing.Verbose() {
		return NewNopLogger()
	}

	return &defaultLogger{
		Logger: zerolog.New(zerolog.ConsoleWriter{Out: testingWriter{t}, NoColor: true}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger(),
	}
}

type testingWriter struct {
	t testing.TB
}

func (tw testingWriter) Write(p []byte) (int, error) {
	tw.t.Helper()
	tw.t.Log(string(p))
	return len(p), nil
}
