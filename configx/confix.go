package configx

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config is a layered, read-mostly view over every registered Source.
// Keys are dotted paths into the merged tree: "connections.main.api_key".
type Config interface {
	Get(key string) Value
	Has(key string) bool

	// Set overrides a single key. Overrides are dropped when a source is added.
	Set(key string, val any)

	// AddSource registers a source and rebuilds the merged tree.
	AddSource(source Source) error
}

// Source produces one layer of configuration
type Source interface {
	Load() (map[string]any, error)
	Name() string

	// Priority orders layers; higher values override lower ones.
	Priority() int
}

const (
	PriorityDefault = 10
	PriorityEnv     = 20
	PriorityDotEnv  = 25
	PriorityFile    = 30
	PriorityMap     = 40
)

type layered struct {
	mu      sync.RWMutex
	tree    map[string]any
	sources []Source
}

// New returns an empty Config
func New() Config {
	return &layered{tree: map[string]any{}}
}

func (c *layered) Get(key string) Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Value{key: key, raw: lookup(c.tree, key)}
}

func (c *layered) Has(key string) bool {
	return c.Get(key).IsSet()
}

func (c *layered) Set(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	setNested(c.tree, strings.Split(key, "."), val)
}

func setNested(node map[string]any, path []string, val any) {
	for _, part := range path[:len(path)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}
	node[path[len(path)-1]] = val
}

func (c *layered) AddSource(source Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sources := append(slices.Clone(c.sources), source)
	tree, err := merge(sources)
	if err != nil {
		return err
	}
	c.sources, c.tree = sources, tree
	return nil
}

// merge loads sources lowest priority first so later layers win. Sources
// with equal priority keep registration order.
func merge(sources []Source) (map[string]any, error) {
	slices.SortStableFunc(sources, func(a, b Source) int {
		return a.Priority() - b.Priority()
	})

	tree := map[string]any{}
	for _, src := range sources {
		layer, err := src.Load()
		if err != nil {
			return nil, fmt.Errorf("config source %s: %w", src.Name(), err)
		}
		overlay(tree, layer)
	}
	return tree, nil
}

func overlay(dst, src map[string]any) {
	for k, v := range src {
		sub, isMap := v.(map[string]any)
		if !isMap {
			dst[k] = clone(v)
			continue
		}
		if existing, ok := dst[k].(map[string]any); ok {
			overlay(existing, sub)
		} else {
			dst[k] = clone(sub)
		}
	}
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = clone(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = clone(item)
		}
		return out
	}
	return v
}

func lookup(tree map[string]any, key string) any {
	if key == "" {
		return clone(tree)
	}
	var cur any = tree
	for part := range strings.SplitSeq(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[part]; !ok {
			return nil
		}
	}
	return cur
}

// Value is a single configuration entry. Conversions never fail; a value
// that is missing or cannot be converted yields the supplied default.
type Value struct {
	key string
	raw any
}

func (v Value) IsSet() bool { return v.raw != nil }

func (v Value) AsString() string { return v.AsStringDefault("") }

func (v Value) AsStringDefault(def string) string {
	switch t := v.raw.(type) {
	case nil, map[string]any, []any:
		return def
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// number reports the value as float64 when it is numeric or a numeric string
func (v Value) number() (float64, bool) {
	switch t := v.raw.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func (v Value) AsInt() int { return v.AsIntDefault(0) }

func (v Value) AsIntDefault(def int) int {
	if f, ok := v.number(); ok {
		return int(math.Trunc(f))
	}
	return def
}

func (v Value) AsFloatDefault(def float64) float64 {
	if f, ok := v.number(); ok {
		return f
	}
	return def
}

func (v Value) AsBool() bool { return v.AsBoolDefault(false) }

// AsBoolDefault accepts booleans, non-zero numbers and the usual
// yes/no, on/off spellings.
func (v Value) AsBoolDefault(def bool) bool {
	if b, ok := v.raw.(bool); ok {
		return b
	}
	if s, ok := v.raw.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "t", "true", "y", "yes", "on":
			return true
		case "0", "f", "false", "n", "no", "off":
			return false
		}
		return def
	}
	if f, ok := v.number(); ok {
		return f != 0
	}
	return def
}

func (v Value) AsDuration() time.Duration { return v.AsDurationDefault(0) }

// AsDurationDefault reads Go duration strings; bare numbers are milliseconds
func (v Value) AsDurationDefault(def time.Duration) time.Duration {
	if d, ok := v.raw.(time.Duration); ok {
		return d
	}
	if s, ok := v.raw.(string); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d
		}
	}
	if f, ok := v.number(); ok {
		return time.Duration(f) * time.Millisecond
	}
	return def
}

// items splits lists and comma separated strings into child values
func (v Value) items() []Value {
	var raw []any
	switch t := v.raw.(type) {
	case nil:
		return nil
	case []any:
		raw = t
	case string:
		for part := range strings.SplitSeq(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				raw = append(raw, part)
			}
		}
	default:
		raw = []any{t}
	}

	out := make([]Value, len(raw))
	for i, item := range raw {
		out[i] = Value{key: fmt.Sprintf("%s[%d]", v.key, i), raw: item}
	}
	return out
}

func (v Value) AsStringSlice() []string {
	var out []string
	for _, item := range v.items() {
		out = append(out, item.AsString())
	}
	return out
}

func (v Value) AsIntSlice() []int {
	var out []int
	for _, item := range v.items() {
		out = append(out, item.AsInt())
	}
	return out
}

func (v Value) AsMap() map[string]Value {
	m, _ := v.raw.(map[string]any)
	out := make(map[string]Value, len(m))
	for k, item := range m {
		out[k] = Value{key: v.key + "." + k, raw: item}
	}
	return out
}

// Builder collects sources and loads them in one pass
type Builder struct {
	sources []Source
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) add(s Source) *Builder {
	b.sources = append(b.sources, s)
	return b
}

// FromFile reads a YAML or JSON file. A missing file fails Build.
func (b *Builder) FromFile(path string) *Builder {
	return b.add(NewFileSource(path, PriorityFile))
}

func (b *Builder) FromDotEnv(path string) *Builder {
	return b.add(NewDotEnvSource(path, PriorityDotEnv))
}

// FromEnv reads PREFIX_* variables; "__" in a name separates nesting levels.
func (b *Builder) FromEnv(prefix string) *Builder {
	return b.add(NewEnvSource(prefix, PriorityEnv))
}

func (b *Builder) FromMap(values map[string]any, name string) *Builder {
	return b.add(NewMapSource(values, name, PriorityMap))
}

func (b *Builder) WithDefaults(defaults map[string]any) *Builder {
	return b.add(NewMapSource(defaults, "defaults", PriorityDefault))
}

func (b *Builder) Build() (Config, error) {
	tree, err := merge(slices.Clone(b.sources))
	if err != nil {
		return nil, err
	}
	return &layered{tree: tree, sources: b.sources}, nil
}
