package configx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
default: main
connections:
  main:
    base_url: https://gw.example.com
    api_key: from-file
    retry:
      max_attempts: 3
      base_delay: 250ms
      retryable_status_codes: [502, 503]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestBuilderPriority(t *testing.T) {
	path := writeFile(t, "wagate.yaml", sampleYAML)

	cfg, err := NewBuilder().
		WithDefaults(map[string]any{
			"connections": map[string]any{
				"main": map[string]any{"api_key": "default", "timeout": "5s"},
			},
		}).
		FromFile(path).
		FromMap(map[string]any{"default": "override"}, "flags").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.Get("default").AsString())
	assert.Equal(t, "from-file", cfg.Get("connections.main.api_key").AsString())
	assert.Equal(t, 5*time.Second, cfg.Get("connections.main.timeout").AsDuration())
	assert.Equal(t, 250*time.Millisecond, cfg.Get("connections.main.retry.base_delay").AsDuration())
	assert.Equal(t, []int{502, 503}, cfg.Get("connections.main.retry.retryable_status_codes").AsIntSlice())
	assert.Equal(t, 3, cfg.Get("connections.main.retry.max_attempts").AsInt())
	assert.False(t, cfg.Get("connections.other").IsSet())
	assert.Contains(t, cfg.Get("connections").AsMap(), "main")
}

func TestBuildFailsOnMissingFile(t *testing.T) {
	_, err := NewBuilder().FromFile(filepath.Join(t.TempDir(), "missing.yaml")).Build()
	assert.Error(t, err)
}

func TestEnvSourceNesting(t *testing.T) {
	src := &EnvSource{
		prefix:   "WAGATE",
		priority: PriorityEnv,
		environ: func() []string {
			return []string{
				"WAGATE_CONNECTIONS__MAIN__API_KEY=secret",
				"WAGATE_CONNECTIONS__MAIN__RETRY__MAX_ATTEMPTS=1",
				"WAGATE_STORE__DRIVER=sqlite",
				"OTHER_THING=ignored",
			}
		},
	}

	cfg := New()
	require.NoError(t, cfg.AddSource(src))

	assert.Equal(t, "secret", cfg.Get("connections.main.api_key").AsString())
	assert.Equal(t, 1, cfg.Get("connections.main.retry.max_attempts").AsInt())
	assert.Equal(t, "sqlite", cfg.Get("store.driver").AsString())
	assert.False(t, cfg.Has("other_thing"))
}

func TestDotEnvAndJSON(t *testing.T) {
	envPath := writeFile(t, ".env", "# comment\nexport WEBHOOK__SECRET=\"s3cr3t\"\nSTORE__TABLE=buckets\n")
	jsonPath := writeFile(t, "cfg.json", `{"webhook":{"addr":":9000"}}`)

	cfg, err := NewBuilder().FromDotEnv(envPath).FromFile(jsonPath).Build()
	require.NoError(t, err)

	assert.Equal(t, "s3cr3t", cfg.Get("webhook.secret").AsString())
	assert.Equal(t, ":9000", cfg.Get("webhook.addr").AsString())
	assert.Equal(t, "buckets", cfg.Get("store.table").AsString())
}

func TestValueConversions(t *testing.T) {
	cfg := New()
	cfg.Set("a.list", "apikey, token")
	cfg.Set("a.flag", "on")
	cfg.Set("a.off", "no")
	cfg.Set("a.ms", 1500)
	cfg.Set("a.ratio", "1.5")

	assert.Equal(t, []string{"apikey", "token"}, cfg.Get("a.list").AsStringSlice())
	assert.True(t, cfg.Get("a.flag").AsBool())
	assert.False(t, cfg.Get("a.off").AsBoolDefault(true))
	assert.Equal(t, 1500*time.Millisecond, cfg.Get("a.ms").AsDuration())
	assert.Equal(t, "1500", cfg.Get("a.ms").AsString())
	assert.Equal(t, 1.5, cfg.Get("a.ratio").AsFloatDefault(0))
	assert.Equal(t, 7, cfg.Get("a.missing").AsIntDefault(7))
	assert.Equal(t, 7, cfg.Get("a.list").AsIntDefault(7))
	assert.Empty(t, cfg.Get("a").AsString())
	assert.Len(t, cfg.Get("a").AsMap(), 5)
}

func TestAddSourceRebuilds(t *testing.T) {
	cfg, err := NewBuilder().FromMap(map[string]any{"store": map[string]any{"driver": "memory"}}, "flags").Build()
	require.NoError(t, err)

	cfg.Set("store.table", "scratch")
	require.NoError(t, cfg.AddSource(NewMapSource(map[string]any{
		"store": map[string]any{"driver": "sqlite", "dsn": "file::memory:"},
	}, "defaults", PriorityDefault)))

	assert.Equal(t, "memory", cfg.Get("store.driver").AsString(), "higher priority layer still wins")
	assert.Equal(t, "file::memory:", cfg.Get("store.dsn").AsString())
	assert.False(t, cfg.Has("store.table"), "overrides are dropped on rebuild")

	failing := NewFileSource(filepath.Join(t.TempDir(), "absent.yaml"), PriorityFile)
	assert.Error(t, cfg.AddSource(failing))
	assert.Equal(t, "memory", cfg.Get("store.driver").AsString())
}
