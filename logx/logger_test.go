package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(format OutputFormat) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := New()
	l.SetOutput(buf)
	l.SetFormat(format)
	l.SetColored(false)
	l.SetShowCaller(false)
	return l, buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(FormatConsole)
	l.SetLevel(WarnLevel)

	l.Info("hidden")
	l.Warn("shown %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN]: shown 1")
}

func TestOffLevelSilences(t *testing.T) {
	l, buf := newBufferLogger(FormatConsole)
	l.SetLevel(OffLevel)
	l.Error("nothing")
	l.Log(OffLevel, "nothing", nil)
	assert.Empty(t, buf.String())
}

func TestConsoleFieldsAreSorted(t *testing.T) {
	l, buf := newBufferLogger(FormatConsole)
	l.With(Fields{"b": 2}).Log(InfoLevel, "hello", Fields{"a": 1})

	assert.True(t, strings.HasSuffix(strings.TrimSpace(buf.String()), "hello a=1 b=2"))
}

func TestJSONFormat(t *testing.T) {
	l, buf := newBufferLogger(FormatJSON)
	l.SetLevel(TraceLevel)
	l.SetPrefix("wagate")

	l.With(Fields{"connection": "main"}).Log(TraceLevel, "sent", Fields{
		"status": 200,
		"err":    errors.New("boom"),
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "trace", line["level"])
	assert.Equal(t, "sent", line["message"])
	assert.Equal(t, "main", line["connection"])
	assert.Equal(t, "wagate", line["prefix"])
	assert.Equal(t, float64(200), line["status"])
	assert.Equal(t, "boom", line["err"])
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	l, buf := newBufferLogger(FormatConsole)
	_ = l.With(Fields{"child": true})
	l.Info("parent")
	assert.NotContains(t, buf.String(), "child=")
}

func TestConfigure(t *testing.T) {
	configure := func(env map[string]string) *Logger {
		l := New()
		Configure(l, func(k string) string { return env[k] })
		return l
	}

	t.Run("plain variables", func(t *testing.T) {
		l := configure(map[string]string{
			"LOG_LEVEL":  "debug",
			"LOG_FORMAT": "JSON",
			"LOG_CALLER": "false",
		})
		assert.Equal(t, DebugLevel, l.Level())
		assert.Equal(t, FormatJSON, l.format)
		assert.False(t, l.showCaller)
		assert.False(t, l.colored)
	})

	t.Run("prefixed variables win", func(t *testing.T) {
		l := configure(map[string]string{
			"LOG_LEVEL":        "debug",
			"WAGATE_LOG_LEVEL": "error",
			"WAGATE_LOG_COLOR": "0",
			"LOG_PREFIX":       "gw",
		})
		assert.Equal(t, ErrorLevel, l.Level())
		assert.False(t, l.colored)
		assert.Equal(t, "gw", l.prefix)
	})

	t.Run("lambda defaults to json", func(t *testing.T) {
		l := configure(map[string]string{"AWS_LAMBDA_FUNCTION_NAME": "wagate-webhook"})
		assert.Equal(t, FormatJSON, l.format)
		assert.False(t, l.showCaller)
		assert.Equal(t, InfoLevel, l.Level())
	})

	t.Run("invalid level is ignored", func(t *testing.T) {
		l := configure(map[string]string{"LOG_LEVEL": "loud"})
		assert.Equal(t, InfoLevel, l.Level())
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel(" warning ")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
