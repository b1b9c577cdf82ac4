package errx

import (
	"net/http"
	"sync"
)

// UnknownCode is returned by Registry.New for codes that were never registered
const UnknownCode Code = "UNKNOWN_ERROR"

type definition struct {
	typ     Type
	status  int
	message string
}

// Registry holds the codes of one package. Codes are prefixed with the
// registry name so they stay unique across packages.
type Registry struct {
	prefix string

	mu   sync.RWMutex
	defs map[Code]definition
}

func NewRegistry(prefix string) *Registry {
	return &Registry{prefix: prefix, defs: map[Code]definition{}}
}

// Register defines name under the registry prefix and returns the full code
func (r *Registry) Register(name Code, t Type, status int, message string) Code {
	code := Code(r.prefix + "_" + string(name))

	r.mu.Lock()
	r.defs[code] = definition{typ: t, status: status, message: message}
	r.mu.Unlock()
	return code
}

// New builds a fresh error for code. Unregistered codes become an internal
// UNKNOWN_ERROR rather than panicking.
func (r *Registry) New(code Code) *Error {
	r.mu.RLock()
	def, ok := r.defs[code]
	r.mu.RUnlock()

	if !ok {
		return &Error{
			Code:       UnknownCode,
			Type:       TypeInternal,
			Message:    "An unexpected error occurred",
			HTTPStatus: http.StatusInternalServerError,
		}
	}
	return &Error{Code: code, Type: def.typ, Message: def.message, HTTPStatus: def.status}
}

func (r *Registry) NewWithMessage(code Code, message string) *Error {
	return r.New(code).WithMessage(message)
}

func (r *Registry) NewWithCause(code Code, cause error) *Error {
	return r.New(code).WithCause(cause)
}
