package logx

import (
	"io"
	"os"
	"strings"
)

var std = New()

func init() {
	Configure(std, os.Getenv)
}

// Configure applies logging settings from the environment. WAGATE_LOG_*
// variables win over LOG_*. Under AWS Lambda the default is JSON without
// caller or colors so CloudWatch can index fields.
func Configure(l *Logger, getenv func(string) string) {
	lookup := func(name string) (string, bool) {
		if v := getenv("WAGATE_" + name); v != "" {
			return strings.ToLower(strings.TrimSpace(v)), true
		}
		v := getenv(name)
		return strings.ToLower(strings.TrimSpace(v)), v != ""
	}

	if getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		l.SetFormat(FormatJSON)
		l.SetShowCaller(false)
	}

	if v, ok := lookup("LOG_LEVEL"); ok {
		if level, err := ParseLevel(v); err == nil {
			l.SetLevel(level)
		}
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		if v == string(FormatJSON) {
			l.SetFormat(FormatJSON)
		} else {
			l.SetFormat(FormatConsole)
		}
	}
	if v, ok := lookup("LOG_COLOR"); ok {
		l.SetColored(v != "false" && v != "0")
	}
	if v, ok := lookup("LOG_CALLER"); ok {
		l.SetShowCaller(v != "false" && v != "0")
	}
	if v, ok := lookup("LOG_PREFIX"); ok {
		l.SetPrefix(v)
	}
}

// GetLogger returns the process-wide logger
func GetLogger() *Logger { return std }

func SetLevel(level Level)            { std.SetLevel(level) }
func SetOutput(w io.Writer)           { std.SetOutput(w) }
func SetFormat(format OutputFormat)   { std.SetFormat(format) }
func IsLevelEnabled(level Level) bool { return std.IsLevelEnabled(level) }

// With returns a child of the process-wide logger carrying fields
func With(fields Fields) *Logger { return std.With(fields) }

// Log writes a structured line on the process-wide logger
func Log(level Level, msg string, fields Fields) { std.Log(level, msg, fields) }

func Trace(msg string, args ...any) { std.Trace(msg, args...) }
func Debug(msg string, args ...any) { std.Debug(msg, args...) }
func Info(msg string, args ...any)  { std.Info(msg, args...) }
func Warn(msg string, args ...any)  { std.Warn(msg, args...) }
func Error(msg string, args ...any) { std.Error(msg, args...) }
func Fatal(msg string, args ...any) { std.Fatal(msg, args...) }
