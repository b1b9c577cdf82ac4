package eventx

import (
	"net/http"

	"github.com/Abraxas-365/wagate/errx"
)

var ErrorRegistry = errx.NewRegistry("EVENT")

var (
	ErrSerializationFailed  = ErrorRegistry.Register("SERIALIZATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to serialize event")
	ErrInvalidEventType     = ErrorRegistry.Register("INVALID_EVENT_TYPE", errx.TypeValidation, http.StatusBadRequest, "Event payload has an unexpected type")
	ErrInvalidConfiguration = ErrorRegistry.Register("INVALID_CONFIGURATION", errx.TypeConfiguration, http.StatusInternalServerError, "Invalid event configuration")
	ErrPublisherNotFound    = ErrorRegistry.Register("PUBLISHER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Publisher not found")
	ErrPublishFailed        = ErrorRegistry.Register("PUBLISH_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Failed to publish event")
	ErrHandlerFailed        = ErrorRegistry.Register("HANDLER_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Event handler failed")
)
