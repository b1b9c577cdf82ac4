package errx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Code identifies one registered failure, e.g. EVOLUTION_INSTANCE_NOT_FOUND
type Code string

// Type groups codes into broad categories callers can branch on
type Type string

const (
	TypeValidation    Type = "VALIDATION"
	TypeAuthorization Type = "AUTHORIZATION"
	TypeNotFound      Type = "NOT_FOUND"
	TypeConflict      Type = "CONFLICT"
	TypeInternal      Type = "INTERNAL"
	TypeBadRequest    Type = "BAD_REQUEST"
	TypeRateLimit     Type = "RATE_LIMIT"
	TypeConfiguration Type = "CONFIGURATION" // local setup, never reaches the network
	TypeSystem        Type = "SYSTEM"
	TypeExternal      Type = "EXTERNAL"    // reported by a remote service
	TypeTimeout       Type = "TIMEOUT"
	TypeUnavailable   Type = "UNAVAILABLE" // remote service could not be reached
)

// Error is the structured error every wagate package returns.
// The With* setters mutate and return the receiver so they chain.
type Error struct {
	Code       Code           `json:"code"`
	Type       Type           `json:"type"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[" + string(e.Type) + "] " + string(e.Code) + ": " + e.Message)
	if e.cause != nil {
		b.WriteString(": " + e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on code, so errors.Is(err, reg.New(code)) holds for any
// instance of that code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func (e *Error) Detail(key string) (any, bool) {
	v, ok := e.Details[key]
	return v, ok
}

func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// Status is the HTTP status to answer with; unset maps to 500
func (e *Error) Status() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

// ToHTTP writes the error as a JSON body with its status
func (e *Error) ToHTTP(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(e)
}

// ToFiber is the fiber counterpart of ToHTTP
func (e *Error) ToFiber(c *fiber.Ctx) error {
	return c.Status(e.Status()).JSON(e)
}

// As returns the outermost *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func IsCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func IsType(err error, t Type) bool {
	e, ok := As(err)
	return ok && e.Type == t
}
