package evolution

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/wagate/errx"
)

// ErrorRegistry holds every error the gateway client returns
var ErrorRegistry = errx.NewRegistry("EVOLUTION")

var (
	ErrConfiguration     = ErrorRegistry.Register("CONFIGURATION", errx.TypeConfiguration, http.StatusInternalServerError, "Invalid connection configuration")
	ErrUnknownConnection = ErrorRegistry.Register("UNKNOWN_CONNECTION", errx.TypeConfiguration, http.StatusInternalServerError, "Unknown connection")
	ErrInstanceRequired  = ErrorRegistry.Register("INSTANCE_REQUIRED", errx.TypeConfiguration, http.StatusBadRequest, "An instance is required for this endpoint")
	ErrInvalidRequest    = ErrorRegistry.Register("INVALID_REQUEST", errx.TypeBadRequest, http.StatusBadRequest, "Request could not be encoded")
	ErrAuthentication    = ErrorRegistry.Register("AUTHENTICATION", errx.TypeAuthorization, http.StatusUnauthorized, "Gateway rejected the API key")
	ErrInstanceNotFound  = ErrorRegistry.Register("INSTANCE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Instance not found")
	ErrRateLimited       = ErrorRegistry.Register("RATE_LIMITED", errx.TypeRateLimit, http.StatusTooManyRequests, "Rate limit exceeded")
	ErrAPI               = ErrorRegistry.Register("API_ERROR", errx.TypeExternal, http.StatusBadGateway, "Gateway returned an error")
	ErrConnectionFailed  = ErrorRegistry.Register("CONNECTION_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Could not reach the gateway")
	ErrInvalidResponse   = ErrorRegistry.Register("INVALID_RESPONSE", errx.TypeExternal, http.StatusBadGateway, "Gateway response could not be decoded")
)

// Detail keys carried by gateway errors
const (
	DetailStatus     = "status"
	DetailInstance   = "instance"
	DetailBody       = "body"
	DetailRetryAfter = "retry_after"
	DetailURL        = "url"
	DetailConnection = "connection"
)

// MapStatusError turns a completed exchange into the matching gateway error.
// It returns nil for 2xx statuses.
func MapStatusError(status int, body []byte, header http.Header, instance string, defaultRetryAfter time.Duration) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var code errx.Code
	switch status {
	case http.StatusUnauthorized:
		code = ErrAuthentication
	case http.StatusNotFound:
		code = ErrInstanceNotFound
	case http.StatusTooManyRequests:
		code = ErrRateLimited
	default:
		code = ErrAPI
	}

	err := ErrorRegistry.New(code).
		WithDetail(DetailStatus, status).
		WithDetail(DetailInstance, instance).
		WithDetail(DetailBody, string(body))
	err.HTTPStatus = status

	if msg := extractMessage(decodeBody(body), status); msg != "" {
		err.WithMessage(msg)
	}

	if status == http.StatusTooManyRequests {
		err.WithDetail(DetailRetryAfter, parseRetryAfter(header.Get("Retry-After"), defaultRetryAfter, time.Now()))
	}
	return err
}

// parseRetryAfter reads delta-seconds or an HTTP date into whole seconds
func parseRetryAfter(value string, def time.Duration, now time.Time) int {
	value = strings.TrimSpace(value)
	if value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
			return secs
		}
		if at, err := http.ParseTime(value); err == nil {
			if d := at.Sub(now); d > 0 {
				return int(math.Ceil(d.Seconds()))
			}
			return 0
		}
	}
	return int(math.Ceil(def.Seconds()))
}

func rateLimitedLocally(instance string, retryAfter int) *errx.Error {
	return ErrorRegistry.New(ErrRateLimited).
		WithDetail(DetailInstance, instance).
		WithDetail(DetailRetryAfter, retryAfter)
}

// ============================================================================
// Accessors
// ============================================================================

func detail(err error, key string) (any, bool) {
	e, ok := errx.As(err)
	if !ok {
		return nil, false
	}
	return e.Detail(key)
}

// StatusOf returns the HTTP status of a gateway error, or 0
func StatusOf(err error) int {
	v, _ := detail(err, DetailStatus)
	status, _ := v.(int)
	return status
}

// InstanceOf returns the instance a gateway error was raised for
func InstanceOf(err error) string {
	v, _ := detail(err, DetailInstance)
	s, _ := v.(string)
	return s
}

// RetryAfterOf returns the retry-after seconds of a rate limit error
func RetryAfterOf(err error) int {
	v, _ := detail(err, DetailRetryAfter)
	secs, _ := v.(int)
	return secs
}

// BodyOf returns the raw response body carried by a gateway error
func BodyOf(err error) string {
	v, _ := detail(err, DetailBody)
	s, _ := v.(string)
	return s
}

func IsAuthentication(err error) bool    { return errx.IsCode(err, ErrAuthentication) }
func IsInstanceNotFound(err error) bool  { return errx.IsCode(err, ErrInstanceNotFound) }
func IsRateLimited(err error) bool       { return errx.IsCode(err, ErrRateLimited) }
func IsAPIError(err error) bool          { return errx.IsCode(err, ErrAPI) }
func IsConnectionFailure(err error) bool { return errx.IsCode(err, ErrConnectionFailed) }
func IsInstanceRequired(err error) bool  { return errx.IsCode(err, ErrInstanceRequired) }

// IsConfiguration reports errors raised before any network I/O
func IsConfiguration(err error) bool {
	return errx.IsType(err, errx.TypeConfiguration)
}
