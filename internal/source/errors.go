// Package source defines the outcome taxonomy shared by message source
// adapters. Callers branch on these values rather than inspecting transport
// details.
package source

import (
	"errors"
	"fmt"
	"time"
)

// ErrPermissionDenied reports that the source refused access to a channel.
// This is an operator-correctable condition, not a transport failure.
var ErrPermissionDenied = errors.New("permission denied")

// RateLimitError reports a source-imposed throttle. RetryAfter is the
// minimum wait the source asked for before the request may be repeated.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
