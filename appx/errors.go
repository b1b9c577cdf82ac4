package appx

import (
	"net/http"

	"github.com/Abraxas-365/wagate/errx"
)

var appErrors = errx.NewRegistry("APP")

var (
	ErrUnknownStoreDriver = appErrors.Register("UNKNOWN_STORE_DRIVER", errx.TypeConfiguration, http.StatusInternalServerError, "Unknown rate limit store driver")
	ErrMissingSetting     = appErrors.Register("MISSING_SETTING", errx.TypeConfiguration, http.StatusInternalServerError, "Required setting is missing")
	ErrStartup            = appErrors.Register("STARTUP", errx.TypeSystem, http.StatusInternalServerError, "Failed to start a dependency")
)
