package utils

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var quotaMarkers = []string{
	"resource_exhausted",
	"resource exhausted",
	"quota",
	"rate limit",
	"rate_limit",
	"ratelimit",
	"too many requests",
}

// IsQuotaExhausted reports whether err means the provider refused the call
// for quota or rate reasons, as opposed to a failure of the request itself.
// Deadlines and cancellations are never quota errors.
func IsQuotaExhausted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrProviderQuota) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if gErr.Code == http.StatusTooManyRequests || strings.Contains(gErr.Body, "RESOURCE_EXHAUSTED") {
			return true
		}
	}
	var httpCoded interface{ HTTPCode() int }
	if errors.As(err, &httpCoded) && httpCoded.HTTPCode() == http.StatusTooManyRequests {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
