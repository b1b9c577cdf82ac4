package validatex

import (
	"errors"
	"reflect"
	"strings"
)

var ErrNotStruct = errors.New("value must be a struct")

type rule struct {
	name  string
	param string
}

// field is one tagged struct field. value is dereferenced and invalid for
// a nil pointer.
type field struct {
	path  string
	value reflect.Value
	rules []rule
}

func (f field) present() bool {
	return f.value.IsValid() && !f.value.IsZero()
}

func (f field) interfaceValue() any {
	if !f.value.IsValid() {
		return nil
	}
	return f.value.Interface()
}

// collect walks exported fields in declaration order, descending into
// nested structs. Paths use json names so failures read like config keys.
func collect(obj any) ([]field, error) {
	root := indirect(reflect.ValueOf(obj))
	if root.Kind() != reflect.Struct {
		return nil, ErrNotStruct
	}
	var out []field
	walk(root, "", &out)
	return out, nil
}

func walk(v reflect.Value, prefix string, out *[]field) {
	t := v.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		path := fieldName(sf)
		if prefix != "" {
			path = prefix + "." + path
		}
		fv := indirect(v.Field(i))

		if tag := sf.Tag.Get("validatex"); tag != "" && tag != "-" {
			*out = append(*out, field{path: path, value: fv, rules: parseTag(tag)})
		}
		if fv.Kind() == reflect.Struct && fv.Type().PkgPath() != "time" {
			walk(fv, path, out)
		}
	}
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func fieldName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

// parseTag splits "required,min=1,oneof=a b" into rules
func parseTag(tag string) []rule {
	var rules []rule
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, param, _ := strings.Cut(part, "=")
		rules = append(rules, rule{name: name, param: param})
	}
	return rules
}
