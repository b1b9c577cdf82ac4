/*
Package errx provides structured errors with codes, types, details, causes and
HTTP status mapping, shared by every package in wagate.

# Registries

Each package owns a registry whose codes are prefixed with the package name:

	var Registry = errx.NewRegistry("EVOLUTION")

	var ErrInstanceNotFound = Registry.Register("INSTANCE_NOT_FOUND", errx.TypeNotFound,
		http.StatusNotFound, "Instance not found")

	err := Registry.New(ErrInstanceNotFound).
		WithDetail("instance", "sales").
		WithCause(cause)

# Matching

Errors compare by code, so a fresh registry error matches its template:

	if errx.IsCode(err, evolution.ErrInstanceNotFound) {
		// ...
	}

	if e, ok := errx.As(err); ok {
		instance, _ := e.Detail("instance")
	}

# HTTP

	e.ToHTTP(w)         // net/http
	return e.ToFiber(c) // fiber
*/
package errx
