package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Kind classifies an upstream failure for logging. Callers still report
// every failure to clients the same way.
type Kind string

const (
	KindNone        Kind = ""
	KindRateLimited Kind = "rate_limited"
	KindAuth        Kind = "auth"
	KindTimeout     Kind = "timeout"
	KindBadRequest  Kind = "bad_request"
	KindUnavailable Kind = "unavailable"
	KindMalformed   Kind = "malformed"
	KindUnknown     Kind = "unknown"
)

// Classify maps an error returned by Complete to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrNoChoices) {
		return KindMalformed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if status := statusCode(err); status != 0 {
		switch {
		case status == http.StatusTooManyRequests:
			return KindRateLimited
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return KindAuth
		case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
			return KindTimeout
		case status >= 500:
			return KindUnavailable
		case status >= 400:
			return KindBadRequest
		}
	}

	var (
		reqErr    *openai.RequestError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &reqErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindMalformed
	}
	if errors.As(err, &netErr) {
		return KindUnavailable
	}
	return KindUnknown
}

// statusCode extracts the upstream HTTP status from go-openai errors.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
