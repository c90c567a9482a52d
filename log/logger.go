// Package log writes JSON log lines carrying the batch identity.
//
// Every entry has run_id and root, plus dry_run when set. Call sites pass
// a flat map of extra fields; keys become top-level JSON keys.
package log

import (
	"io"
	"os"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/svgswap/types"
)

// Logger wraps a zap.Logger. A nil *Logger is valid and discards.
type Logger struct {
	zap *zap.Logger
}

// NewLogger logs to stderr at level. Unknown levels mean info.
func NewLogger(meta *types.BatchMeta, level string) *Logger {
	return NewLoggerWithWriter(meta, level, os.Stderr)
}

func NewLoggerWithWriter(meta *types.BatchMeta, level string, w io.Writer) *Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		NameKey:     "component",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeName:  zapcore.FullNameEncoder,
	})
	z := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), ParseLevel(level)))

	if meta != nil {
		z = z.With(zap.String("run_id", meta.RunID), zap.String("root", meta.Root))
		if meta.DryRun {
			z = z.With(zap.Bool("dry_run", true))
		}
	}
	return &Logger{zap: z}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// ParseLevel maps debug, info, warn or error onto a zap level.
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Named tags entries with a component, e.g. "gate" or "convert.vector".
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{zap: l.zap.Named(component)}
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.write(zapcore.DebugLevel, message, fields)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write(zapcore.InfoLevel, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write(zapcore.WarnLevel, message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write(zapcore.ErrorLevel, message, fields)
}

// write emits fields in key order so lines are stable across runs.
func (l *Logger) write(level zapcore.Level, message string, fields map[string]any) {
	if l == nil {
		return
	}
	ce := l.zap.Check(level, message)
	if ce == nil {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	zf := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	ce.Write(zf...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	if l != nil {
		_ = l.zap.Sync()
	}
}

// Debugf is a printf-style debug sink, shaped for libraries that take a
// func(string, ...any) logger.
func (l *Logger) Debugf(template string, args ...any) {
	if l != nil {
		l.zap.Sugar().Debugf(template, args...)
	}
}
