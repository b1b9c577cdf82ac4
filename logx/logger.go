package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// OutputFormat defines the log output format
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// Fields carries structured context attached to a log line
type Fields map[string]any

// Logger represents a logger instance
type Logger struct {
	mu         *sync.Mutex
	level      Level
	out        io.Writer
	prefix     string
	showCaller bool
	colored    bool
	format     OutputFormat
	fields     Fields
	zl         zerolog.Logger
}

// New creates a new logger with default settings
func New() *Logger {
	l := &Logger{
		mu:         &sync.Mutex{},
		level:      InfoLevel,
		out:        os.Stdout,
		showCaller: true,
		colored:    true,
		format:     FormatConsole,
	}
	l.rebuild()
	return l
}

func (l *Logger) rebuild() {
	l.zl = zerolog.New(l.out).With().Timestamp().Logger()
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the minimum log level
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetOutput sets the output destination
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
	l.rebuild()
}

// SetPrefix sets a prefix for all log messages
func (l *Logger) SetPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix = prefix
}

// SetShowCaller enables or disables showing caller information
func (l *Logger) SetShowCaller(show bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.showCaller = show
}

// SetColored enables or disables colored output
func (l *Logger) SetColored(colored bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colored = colored
}

// SetFormat sets the output format
func (l *Logger) SetFormat(format OutputFormat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = format
	if format == FormatJSON {
		l.colored = false
	}
}

// IsLevelEnabled checks if a level is enabled
func (l *Logger) IsLevelEnabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level != OffLevel && level >= l.level
}

// With returns a child logger that adds fields to every line.
// The child starts from a copy of the parent's settings.
func (l *Logger) With(fields Fields) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	child := *l
	child.fields = merged
	return &child
}

// Log writes a structured line
func (l *Logger) Log(level Level, msg string, fields Fields) {
	if !l.IsLevelEnabled(level) {
		return
	}
	l.write(level, msg, fields)
}

func (l *Logger) write(level Level, msg string, fields Fields) {
	caller := l.findCaller()

	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.fields
	if len(fields) > 0 {
		all = make(Fields, len(l.fields)+len(fields))
		for k, v := range l.fields {
			all[k] = v
		}
		for k, v := range fields {
			all[k] = v
		}
	}

	switch l.format {
	case FormatJSON:
		l.writeJSON(level, caller, msg, all)
	default:
		l.writeConsole(level, caller, msg, all)
	}
}

func (l *Logger) writeJSON(level Level, caller, msg string, fields Fields) {
	ev := l.zl.Log().Str(zerolog.LevelFieldName, level.zerologName())
	if l.prefix != "" {
		ev = ev.Str("prefix", l.prefix)
	}
	if caller != "" {
		ev = ev.Str(zerolog.CallerFieldName, caller)
	}
	for _, k := range sortedKeys(fields) {
		if err, ok := fields[k].(error); ok {
			ev = ev.AnErr(k, err)
			continue
		}
		ev = ev.Interface(k, fields[k])
	}
	ev.Msg(msg)
}

func (l *Logger) writeConsole(level Level, caller, msg string, fields Fields) {
	var b strings.Builder

	b.WriteString("[")
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString("] ")
	if l.prefix != "" {
		b.WriteString(l.prefix)
		b.WriteString(" ")
	}

	levelStr := level.String()
	if l.colored {
		levelStr = level.Colorize()
	}
	b.WriteString("[" + levelStr + "]")
	if caller != "" {
		b.WriteString(" " + caller)
	}
	b.WriteString(": ")
	b.WriteString(msg)

	for _, k := range sortedKeys(fields) {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	b.WriteString("\n")

	_, _ = io.WriteString(l.out, b.String())
}

func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// findCaller finds the first caller outside of the logx package
func (l *Logger) findCaller() string {
	l.mu.Lock()
	show := l.showCaller
	l.mu.Unlock()
	if !show {
		return ""
	}

	for i := 2; i < 15; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(filepath.ToSlash(file), "/logx/") && !strings.HasSuffix(file, "_test.go") {
			continue
		}
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return ""
}

func (l *Logger) logf(level Level, msg string, args ...any) {
	if !l.IsLevelEnabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.write(level, msg, nil)
}

// Trace logs a message at trace level
func (l *Logger) Trace(msg string, args ...any) { l.logf(TraceLevel, msg, args...) }

// Debug logs a message at debug level
func (l *Logger) Debug(msg string, args ...any) { l.logf(DebugLevel, msg, args...) }

// Info logs a message at info level
func (l *Logger) Info(msg string, args ...any) { l.logf(InfoLevel, msg, args...) }

// Warn logs a message at warn level
func (l *Logger) Warn(msg string, args ...any) { l.logf(WarnLevel, msg, args...) }

// Error logs a message at error level
func (l *Logger) Error(msg string, args ...any) { l.logf(ErrorLevel, msg, args...) }

// Fatal logs a message at error level and exits
func (l *Logger) Fatal(msg string, args ...any) {
	l.logf(ErrorLevel, msg, args...)
	os.Exit(1)
}
