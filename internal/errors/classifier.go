package errors

import (
	"net/http"
	"strings"
)

// ErrorClassifier maps HTTP status codes and transport failures from the
// external search client into the taxonomy's SearchPermanent/SearchTransient
// split (SPEC_FULL.md §4.1, §7).
type ErrorClassifier struct {
	transientCodes  map[int]bool
	permanentCodes  map[int]bool
	timeoutPatterns []string
}

func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{
		transientCodes: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusServiceUnavailable:  true,
		},
		permanentCodes: map[int]bool{
			http.StatusUnauthorized: true,
			http.StatusForbidden:    true,
		},
		timeoutPatterns: []string{
			"timeout",
			"deadline exceeded",
			"connection reset",
			"connection refused",
		},
	}
}

// ClassifyHTTPStatus returns a search error of the appropriate kind for a
// provider HTTP response. statusCode 0 means no response was received at all
// (a transport failure), which is always treated as transient.
func (ec *ErrorClassifier) ClassifyHTTPStatus(component string, statusCode int, body string) *AppError {
	if ec.permanentCodes[statusCode] {
		return NewSearchPermanentError(component, "search provider rejected credentials", statusCode)
	}
	if statusCode == 0 || ec.transientCodes[statusCode] {
		return NewSearchTransientError(component, "search provider request failed", statusCode, nil)
	}
	// Any other status (e.g. a 400 with a malformed query) is treated as
	// permanent: retrying an identical malformed request cannot succeed.
	return NewSearchPermanentError(component, "search provider returned an unexpected status", statusCode)
}

// IsTransportTimeout reports whether err's text looks like a transport-level
// timeout or connection failure rather than an HTTP error response.
func (ec *ErrorClassifier) IsTransportTimeout(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range ec.timeoutPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
