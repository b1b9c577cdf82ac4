package logx

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// Level represents the severity level of a log message
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	OffLevel
)

type levelInfo struct {
	name    string
	zerolog string
	color   *color.Color
}

var levels = [...]levelInfo{
	TraceLevel: {"TRACE", zerolog.LevelTraceValue, color.New(color.FgHiBlack)},
	DebugLevel: {"DEBUG", zerolog.LevelDebugValue, color.New(color.FgCyan)},
	InfoLevel:  {"INFO", zerolog.LevelInfoValue, color.New(color.FgGreen)},
	WarnLevel:  {"WARN", zerolog.LevelWarnValue, color.New(color.FgYellow)},
	ErrorLevel: {"ERROR", zerolog.LevelErrorValue, color.New(color.FgRed, color.Bold)},
	OffLevel:   {"OFF", "off", nil},
}

func (l Level) info() (levelInfo, bool) {
	if l < TraceLevel || l > OffLevel {
		return levelInfo{}, false
	}
	return levels[l], true
}

// String returns the upper-case level name
func (l Level) String() string {
	if li, ok := l.info(); ok {
		return li.name
	}
	return "UNKNOWN"
}

// ParseLevel parses a level name case-insensitively. WARNING is accepted
// for WARN.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return WarnLevel, nil
	}
	for l, li := range levels {
		if li.name == name {
			return Level(l), nil
		}
	}
	return InfoLevel, fmt.Errorf("invalid log level: %q", s)
}

// Colorize renders the level name in its terminal color
func (l Level) Colorize() string {
	li, ok := l.info()
	if !ok || li.color == nil {
		return l.String()
	}
	li.color.EnableColor()
	return li.color.Sprint(li.name)
}

// zerolog filters trace below its global level, so JSON lines carry our own
// level string on a NoLevel event instead.
func (l Level) zerologName() string {
	if li, ok := l.info(); ok {
		return li.zerolog
	}
	return strings.ToLower(l.String())
}
