// Package logger provides leveled, structured JSON logging for the engine.
// Entries are single JSON lines with fields flattened at the top level, so
// a `user_id` bound via With lands next to `level` and `msg` instead of
// inside a nested object. Standard library only.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ─── Levels ──────────────────────────────────────────────────────────────────

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the upper-case level name.
func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a level name to a Level. Unknown names fall back to
// LevelInfo, so a misconfigured LOG_LEVEL never silences the service.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// ─── Fields ──────────────────────────────────────────────────────────────────

// Field is one structured key-value pair.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field    { return Field{Key: key, Value: value} }
func Int(key string, value int) Field   { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration renders the duration in its human form ("1.5s").
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Err attaches the error text under the "error" key. Nil-safe.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Helpers for the engine's recurring fields.
func UserID(id string) Field        { return String("user_id", id) }
func ModuleID(id string) Field      { return String("module_id", id) }
func LessonID(id string) Field      { return String("lesson_id", id) }
func BadgeID(id string) Field       { return String("badge_id", id) }
func Score(score int) Field         { return Int("score", score) }
func Streak(days int) Field         { return Int("streak", days) }
func Component(name string) Field   { return String("component", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

// ─── Logger ──────────────────────────────────────────────────────────────────

// Options configures a Logger.
type Options struct {
	// Output receives the log lines. Defaults to os.Stdout.
	Output io.Writer

	// Level is the minimum severity that gets written.
	Level Level

	// AddCaller appends a file:line caller field to every entry.
	AddCaller bool

	// CallerSkip adjusts the caller stack depth for wrapping layers.
	CallerSkip int
}

// Logger writes structured JSON log lines. Bound fields from With are
// prefix-immutable: child loggers append, they never mutate the parent.
type Logger struct {
	mu     *sync.Mutex
	out    io.Writer
	level  Level
	bound  []Field
	caller bool
	skip   int
}

// New creates a Logger.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Logger{
		mu:     &sync.Mutex{},
		out:    opts.Output,
		level:  opts.Level,
		caller: opts.AddCaller,
		skip:   opts.CallerSkip,
	}
}

// Default creates a stdout logger at info level.
func Default() *Logger {
	return New(Options{Level: LevelInfo})
}

// With returns a child logger carrying the extra fields. The writer lock
// is shared so parent and children never interleave lines.
func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.bound = append(l.bound[:len(l.bound):len(l.bound)], fields...)
	return &child
}

// Enabled reports whether entries at the level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

// Fatal logs at error level and exits.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.write(LevelError, msg, fields)
	os.Exit(1)
}

// ─── Encoding ────────────────────────────────────────────────────────────────

func (l *Logger) write(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, `{"ts":"`...)
	buf = time.Now().UTC().AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","level":"`...)
	buf = append(buf, level.String()...)
	buf = append(buf, `","msg":`...)
	buf = appendJSONValue(buf, msg)

	if l.caller {
		if _, file, line, ok := runtime.Caller(2 + l.skip); ok {
			buf = append(buf, `,"caller":`...)
			buf = appendJSONValue(buf, shortFile(file)+":"+strconv.Itoa(line))
		}
	}

	for _, f := range l.bound {
		buf = appendField(buf, f)
	}
	for _, f := range fields {
		buf = appendField(buf, f)
	}

	buf = append(buf, '}', '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(buf)
}

func appendField(buf []byte, f Field) []byte {
	buf = append(buf, ',')
	buf = appendJSONValue(buf, f.Key)
	buf = append(buf, ':')
	return appendJSONValue(buf, f.Value)
}

// appendJSONValue encodes the common field kinds without reflection; the
// rest goes through encoding/json.
func appendJSONValue(buf []byte, v any) []byte {
	switch val := v.(type) {
	case nil:
		return append(buf, "null"...)
	case string:
		if data, err := json.Marshal(val); err == nil {
			return append(buf, data...)
		}
		return append(buf, `""`...)
	case int:
		return strconv.AppendInt(buf, int64(val), 10)
	case int64:
		return strconv.AppendInt(buf, val, 10)
	case float64:
		return strconv.AppendFloat(buf, val, 'f', -1, 64)
	case bool:
		return strconv.AppendBool(buf, val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return appendJSONValue(buf, fmt.Sprintf("%v", val))
		}
		return append(buf, data...)
	}
}

// shortFile keeps the last two path segments: "command/complete_lesson.go".
func shortFile(file string) string {
	idx := strings.LastIndexByte(file, '/')
	if idx < 0 {
		return file
	}
	if prev := strings.LastIndexByte(file[:idx], '/'); prev >= 0 {
		return file[prev+1:]
	}
	return file
}
