package configx

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables source
// ===========================

// EnvSource loads configuration from environment variables.
// The prefix is stripped, keys are lower-cased, and "__" separates nesting
// levels, so WAGATE_CONNECTIONS__MAIN__BASE_URL becomes connections.main.base_url.
type EnvSource struct {
	prefix   string
	priority int
	environ  func() []string
}

// NewEnvSource creates a new environment variable source
func NewEnvSource(prefix string, priority int) Source {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		environ:  os.Environ,
	}
}

func (s *EnvSource) Load() (map[string]any, error) {
	result := make(map[string]any)
	prefix := s.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	for _, env := range s.environ() {
		key, raw, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if prefix != "" {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			key = strings.TrimPrefix(key, prefix)
		}
		if key == "" {
			continue
		}

		parts := strings.Split(strings.ToLower(key), "__")
		setNested(result, parts, convertScalar(raw))
	}

	return result, nil
}

func (s *EnvSource) Name() string {
	return fmt.Sprintf("env(%s)", s.prefix)
}

func (s *EnvSource) Priority() int {
	return s.priority
}

// DotEnv file source
// ===========================

// DotEnvSource loads configuration from a .env file using the EnvSource key rules
type DotEnvSource struct {
	path     string
	priority int
}

// NewDotEnvSource creates a new .env file source
func NewDotEnvSource(path string, priority int) Source {
	return &DotEnvSource{
		path:     path,
		priority: priority,
	}
}

func (s *DotEnvSource) Load() (map[string]any, error) {
	result := make(map[string]any)

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if len(val) > 1 && (val[0] == '"' && val[len(val)-1] == '"' ||
			val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}

		setNested(result, strings.Split(strings.ToLower(key), "__"), convertScalar(val))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}
	return result, nil
}

func (s *DotEnvSource) Name() string {
	return fmt.Sprintf("dotenv(%s)", s.path)
}

func (s *DotEnvSource) Priority() int {
	return s.priority
}

// File source
// ===========================

// FileSource loads a YAML or JSON document, chosen by file extension
type FileSource struct {
	path     string
	priority int
}

// NewFileSource creates a new file source
func NewFileSource(path string, priority int) Source {
	return &FileSource{path: path, priority: priority}
}

func (s *FileSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	result := make(map[string]any)
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".json":
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", s.path)
	}

	return normalizeMap(result), nil
}

func (s *FileSource) Name() string {
	return fmt.Sprintf("file(%s)", s.path)
}

func (s *FileSource) Priority() int {
	return s.priority
}

// Map source
// ===========================

// MapSource loads configuration from a map
type MapSource struct {
	values   map[string]any
	name     string
	priority int
}

// NewMapSource creates a new map source holding a copy of values
func NewMapSource(values map[string]any, name string, priority int) Source {
	return &MapSource{
		values:   normalizeMap(values),
		name:     name,
		priority: priority,
	}
}

func (s *MapSource) Load() (map[string]any, error) {
	return clone(s.values).(map[string]any), nil
}

func (s *MapSource) Name() string {
	return s.name
}

func (s *MapSource) Priority() int {
	return s.priority
}

// Helper functions
// ===========================

// convertScalar types an environment string; "1" stays an int
func convertScalar(value string) any {
	switch strings.ToLower(value) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}

	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// normalizeMap converts nested map[any]any and typed slices into the
// map[string]any / []any shapes the lookups expect
func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeMap(val)
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = normalizeValue(item)
		}
		return m
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []int:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	default:
		return val
	}
}
