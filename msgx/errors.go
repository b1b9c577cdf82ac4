package msgx

import (
	"net/http"

	"github.com/Abraxas-365/wagate/errx"
)

// Registry holds the webhook ingestion errors
var Registry = errx.NewRegistry("WEBHOOK")

var (
	ErrProcessingFailed = Registry.Register("PROCESSING_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Webhook processing failed")
	ErrInvalidPayload   = Registry.Register("INVALID_PAYLOAD", errx.TypeBadRequest, http.StatusBadRequest, "Webhook body is not a JSON object")
	ErrInvalidSignature = Registry.Register("INVALID_SIGNATURE", errx.TypeAuthorization, http.StatusUnauthorized, "Webhook signature mismatch")
	ErrUnauthorized     = Registry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Webhook sender is not authorized")
	ErrPayloadTooLarge  = Registry.Register("PAYLOAD_TOO_LARGE", errx.TypeBadRequest, http.StatusRequestEntityTooLarge, "Webhook body is too large")
	ErrMethodNotAllowed = Registry.Register("METHOD_NOT_ALLOWED", errx.TypeBadRequest, http.StatusMethodNotAllowed, "Webhooks must be POSTed")
)

// IsProcessingFailed reports whether a handler or publisher failed
func IsProcessingFailed(err error) bool {
	return errx.IsCode(err, ErrProcessingFailed)
}
