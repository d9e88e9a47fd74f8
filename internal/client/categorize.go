package client

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kjstillabower/weatherkit-gateway/internal/token"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as metric labels (weatherkitErrorsTotal).
const (
	ErrorCategoryTimeout           ErrorCategory = "timeout"
	ErrorCategoryNetwork           ErrorCategory = "network"
	ErrorCategoryInvalidCredential ErrorCategory = "invalid_credential"
	ErrorCategoryUnauthorized      ErrorCategory = "unauthorized"
	ErrorCategoryNotFound          ErrorCategory = "not_found"
	ErrorCategoryRateLimited       ErrorCategory = "rate_limited"
	ErrorCategoryUpstream4xx       ErrorCategory = "upstream_4xx"
	ErrorCategoryUpstream5xx       ErrorCategory = "upstream_5xx"
	ErrorCategoryParsing           ErrorCategory = "parsing"
	ErrorCategoryNotImplemented    ErrorCategory = "not_implemented"
	ErrorCategoryUnknown           ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrNotImplemented) {
		return ErrorCategoryNotImplemented
	}
	if errors.Is(err, token.ErrInvalidCredential) {
		return ErrorCategoryInvalidCredential
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized, httpErr.StatusCode == http.StatusForbidden:
			return ErrorCategoryUnauthorized
		case httpErr.StatusCode == http.StatusNotFound:
			return ErrorCategoryNotFound
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return ErrorCategoryRateLimited
		case httpErr.StatusCode >= 500:
			return ErrorCategoryUpstream5xx
		default:
			return ErrorCategoryUpstream4xx
		}
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}

	errStr := err.Error()
	if strings.Contains(errStr, "parse") || strings.Contains(errStr, "unmarshal") {
		return ErrorCategoryParsing
	}

	return ErrorCategoryUnknown
}
