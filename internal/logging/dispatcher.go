package logging

import (
	"io"

	"github.com/rs/zerolog"
)

// NewZerolog returns the JSON logger used by the dispatcher and the storage
// and metrics backends. Records carry a timestamp and the service name.
// Unparseable levels mean info.
func NewZerolog(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	ctx := zerolog.New(w).Level(lvl).With().Timestamp()
	return ctx.Str("service", ServiceName).Logger()
}

// DispatcherLogger satisfies dispatcher.Logger on top of zerolog.
type DispatcherLogger struct {
	z zerolog.Logger
}

func NewDispatcherLogger(z zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{z: z}
}

func (l *DispatcherLogger) Debug(msg string, kv ...any) { l.emit(l.z.Debug(), msg, kv) }
func (l *DispatcherLogger) Info(msg string, kv ...any)  { l.emit(l.z.Info(), msg, kv) }
func (l *DispatcherLogger) Error(msg string, kv ...any) { l.emit(l.z.Error(), msg, kv) }

// emit attaches kv pairs in order. A pair whose key is not a string is
// skipped, as is a trailing key without a value.
func (l *DispatcherLogger) emit(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if err, isErr := kv[i+1].(error); isErr {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}
