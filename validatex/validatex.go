// Package validatex validates structs from `validatex` field tags.
//
//	type Profile struct {
//		Name    string `validatex:"required"`
//		BaseURL string `validatex:"required,url"`
//		Retries int    `validatex:"min=1,max=10"`
//	}
//
//	if err := validatex.Validate(p); err != nil {
//		// err is an *errx.Error of code VALIDATION_FAILED with one detail per field
//	}
//
// Rules other than required are skipped for zero values.
package validatex

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Abraxas-365/wagate/errx"
)

var (
	validationErrors = errx.NewRegistry("VALIDATION")

	ErrValidationFailed = validationErrors.Register("FAILED", errx.TypeValidation, http.StatusBadRequest, "Validation failed")
	ErrUnknownRule      = validationErrors.Register("UNKNOWN_RULE", errx.TypeInternal, http.StatusInternalServerError, "Unknown validation rule")
)

// Validatable lets a type add checks that tags cannot express
type Validatable interface {
	Validate() error
}

// FieldError describes one failed rule
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (f FieldError) String() string {
	if f.Param != "" {
		return fmt.Sprintf("%s: %s=%s", f.Field, f.Rule, f.Param)
	}
	return fmt.Sprintf("%s: %s", f.Field, f.Rule)
}

// Validate checks every tagged field of obj (a struct or pointer to one)
// and then calls obj.Validate when it implements Validatable
func Validate(obj any) error {
	fields, err := collect(obj)
	if err != nil {
		return validationErrors.New(ErrValidationFailed).WithCause(err)
	}

	var failures []FieldError
	for _, f := range fields {
		for _, r := range f.rules {
			fn, ok := getValidationFunc(r.name)
			if !ok {
				return validationErrors.New(ErrUnknownRule).
					WithDetail("field", f.path).
					WithDetail("rule", r.name)
			}
			if r.name != "required" && !f.present() {
				continue
			}
			if !fn(f.interfaceValue(), r.param) {
				failures = append(failures, FieldError{Field: f.path, Rule: r.name, Param: r.param})
			}
		}
	}

	if len(failures) > 0 {
		msgs := make([]string, len(failures))
		for i, f := range failures {
			msgs[i] = f.String()
		}
		return validationErrors.NewWithMessage(ErrValidationFailed, "Validation failed: "+strings.Join(msgs, "; ")).
			WithDetail("fields", failures)
	}

	if v, ok := obj.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return validationErrors.New(ErrValidationFailed).WithCause(err)
		}
	}
	return nil
}

// Failures returns the field errors carried by a validation error
func Failures(err error) []FieldError {
	e, ok := errx.As(err)
	if !ok {
		return nil
	}
	v, _ := e.Detail("fields")
	failures, _ := v.([]FieldError)
	return failures
}
