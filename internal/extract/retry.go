package extract

import (
	"context"
	"errors"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ShouldRetry reports whether a completion-call failure is transient. Semantic
// problems (bad JSON, odd content) never land here; this only sees transport
// and API errors.
func ShouldRetry(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var ae *openai.APIError
	if errors.As(err, &ae) {
		if ae.HTTPStatusCode == 429 || ae.HTTPStatusCode == 408 {
			return true
		}
		return ae.HTTPStatusCode >= 500 && ae.HTTPStatusCode <= 599
	}
	return false
}

func Backoff(attempt int) time.Duration {
	base := []time.Duration{200 * time.Millisecond, 600 * time.Millisecond, 1400 * time.Millisecond}
	if attempt <= 0 {
		return base[0]
	}
	if attempt >= len(base) {
		return base[len(base)-1]
	}
	return base[attempt]
}
