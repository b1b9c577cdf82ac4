package limitx

import (
	"net/http"

	"github.com/Abraxas-365/wagate/errx"
)

var (
	limitErrors = errx.NewRegistry("LIMIT")

	ErrStoreUnavailable = limitErrors.Register("STORE_UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Rate limit state is unavailable")
)
