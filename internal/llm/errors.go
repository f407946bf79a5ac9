package llm

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// maxErrBody bounds how much of a failed response body is kept in an error
const maxErrBody = 300

// ErrEmptyResponse is returned when the service answered 2xx but produced no text
var ErrEmptyResponse = errors.New("empty response")

// APIError is a non-2xx answer from a provider
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error (%d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsAuthError reports whether err is a 401/403 from a provider.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
}

// IsRateLimited reports whether err is a 429 from a provider.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

// truncateBody keeps error messages readable when a service returns an HTML page
func truncateBody(body []byte) string {
	if len(body) <= maxErrBody {
		return string(body)
	}
	n := maxErrBody
	for n > 0 && !utf8.RuneStart(body[n]) {
		n--
	}
	return string(body[:n]) + "..."
}
