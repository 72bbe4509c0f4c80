package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSelectorNotFound   = errors.New("selector matched nothing")
	ErrIncompleteItem     = errors.New("extracted item is incomplete")
	ErrDisallowedByRobots = errors.New("disallowed by robots.txt")
	ErrEmptyResponse      = errors.New("empty response")
)

// FetchError is a failed page load. StatusCode is 0 when no response arrived.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrSelectorNotFound),
		errors.Is(err, ErrIncompleteItem),
		errors.Is(err, ErrDisallowedByRobots):
		return false
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return isRetryableStatus(fe.StatusCode)
	}
	return true
}

func isRetryableStatus(code int) bool {
	switch {
	case code == 0:
		return true
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	case code >= 400:
		return false
	}
	return true
}
