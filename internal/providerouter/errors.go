package providerouter

import "automatosx/internal/apperr"

// ErrNoProvidersConfigured is returned when the router has zero registered
// providers.
func ErrNoProvidersConfigured() error {
	return apperr.New(apperr.CodeNoProvidersConfigured, "no providers registered with the router")
}

// ErrNoProvidersAvailable is returned when every registered provider is
// either unavailable or under penalty.
func ErrNoProvidersAvailable() error {
	return apperr.New(apperr.CodeNoProvidersAvailable, "all providers are unavailable or under penalty")
}
