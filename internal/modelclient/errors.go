package modelclient

import "scifind-backend/internal/errors"

func newUnknownProviderError(provider string) error {
	return errors.NewValidationError("modelclient", "unknown model provider", "provider", provider)
}

func newAuthError(component string, cause error) error {
	return errors.NewModelAuthError(component, "model backend rejected credentials", cause)
}

func newRateLimitError(component string) error {
	return errors.NewModelRateLimitError(component, "model backend throttled the request")
}

func newResponseError(component, rawText string) error {
	prefix := rawText
	if len(prefix) > 200 {
		prefix = prefix[:200]
	}
	return errors.NewModelResponseError(component, "model response could not be parsed as JSON", prefix)
}
