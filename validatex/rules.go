package validatex

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ValidationFunc defines a function that validates a value
type ValidationFunc func(value any, param string) bool

var builtinValidationFuncs = map[string]ValidationFunc{
	"required": validateRequired,
	"url":      validateURL,
	"min":      validateMin,
	"max":      validateMax,
	"oneof":    validateOneOf,
}

var (
	customMu              sync.RWMutex
	customValidationFuncs = map[string]ValidationFunc{}
)

// RegisterValidationFunc registers a custom validation function
func RegisterValidationFunc(name string, fn ValidationFunc) {
	customMu.Lock()
	defer customMu.Unlock()
	customValidationFuncs[name] = fn
}

func getValidationFunc(name string) (ValidationFunc, bool) {
	customMu.RLock()
	fn, ok := customValidationFuncs[name]
	customMu.RUnlock()
	if ok {
		return fn, true
	}

	fn, ok = builtinValidationFuncs[name]
	return fn, ok
}

// validateRequired rejects nil, zero values and empty collections
func validateRequired(value any, _ string) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	default:
		return !rv.IsZero()
	}
}

// validateURL accepts absolute http and https URLs with a host
func validateURL(value any, _ string) bool {
	str, ok := value.(string)
	if !ok {
		return false
	}
	u, err := url.Parse(str)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateMin(value any, param string) bool {
	n, bound, ok := measure(value, param)
	return ok && n >= bound
}

func validateMax(value any, param string) bool {
	n, bound, ok := measure(value, param)
	return ok && n <= bound
}

// measure returns the comparable size of value (numbers by value, strings
// and collections by length) and the parsed bound. Durations accept bounds
// such as "1ms".
func measure(value any, param string) (float64, float64, bool) {
	rv := reflect.ValueOf(value)

	var n float64
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n = float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		n = rv.Float()
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		n = float64(rv.Len())
	default:
		return 0, 0, false
	}

	if bound, err := strconv.ParseFloat(param, 64); err == nil {
		return n, bound, true
	}
	if _, isDuration := value.(time.Duration); isDuration {
		if d, err := time.ParseDuration(param); err == nil {
			return n, float64(d), true
		}
	}
	return 0, 0, false
}

// validateOneOf takes space separated allowed values
func validateOneOf(value any, param string) bool {
	str := fmt.Sprintf("%v", value)
	for _, allowed := range strings.Fields(param) {
		if allowed == str {
			return true
		}
	}
	return false
}
