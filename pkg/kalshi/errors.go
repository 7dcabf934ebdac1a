package kalshi

import (
	"errors"
	"fmt"
	"net/http"
)

// KeyLoadError reports a private key file that could not be read or decoded,
// including a wrong passphrase for an encrypted key.
type KeyLoadError struct {
	Path string
	Err  error
}

func (e *KeyLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("kalshi: load private key: %v", e.Err)
	}
	return fmt.Sprintf("kalshi: load private key %s: %v", e.Path, e.Err)
}

func (e *KeyLoadError) Unwrap() error { return e.Err }

// SigningError reports that the signing primitive rejected the key or input.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("kalshi: sign request: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// UnsupportedMethodError is returned for HTTP methods other than GET, POST, PUT and DELETE.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("kalshi: unsupported http method %q", e.Method)
}

// HTTPTransportError wraps a network-level failure. The whole fetch may be retried.
type HTTPTransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *HTTPTransportError) Error() string {
	return fmt.Sprintf("kalshi: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *HTTPTransportError) Unwrap() error { return e.Err }

// APIError carries a non-2xx response verbatim for diagnostics.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	body := string(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("kalshi: http status %d: %s", e.StatusCode, body)
}

// ResponseParseError reports a response body that is not valid JSON or lacks
// the expected records field.
type ResponseParseError struct {
	Field string
	Body  []byte
	Err   error
}

func (e *ResponseParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("kalshi: decode %q response: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("kalshi: decode response: %v", e.Err)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// errMissingField is wrapped by ResponseParseError when the records field is absent.
var errMissingField = errors.New("records field missing")

// IsRetriable reports whether err is worth retrying: transport failures,
// rate limiting and server-side errors.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= 500 && apiErr.StatusCode <= 599:
			return true
		default:
			return false
		}
	}
	var transportErr *HTTPTransportError
	return errors.As(err, &transportErr)
}
