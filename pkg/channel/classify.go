package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/slipverify/notifier/pkg/notification"
)

const maxErrorBody = 512

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusRequestTimeout
}

// statusFailure converts an unsuccessful HTTP response into a result.
func statusFailure(provider string, code int, retryAfter string, detail string) notification.Result {
	msg := fmt.Sprintf("%s API error: %d %s", provider, code, http.StatusText(code))
	if detail != "" {
		msg += ": " + truncate(detail, maxErrorBody)
	}
	switch {
	case code == http.StatusTooManyRequests:
		res := notification.RateLimitedFailure(parseRetryAfter(retryAfter))
		res.Error = msg
		return res
	case transientStatus(code):
		return notification.TransientFailure(msg)
	default:
		return notification.PermanentFailure(msg)
	}
}

// errorFailure converts a transport error into a transient result.
func errorFailure(provider string, err error) notification.Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return notification.TransientFailure(fmt.Sprintf("%s request timed out: %v", provider, err))
	}
	return notification.TransientFailure(fmt.Sprintf("%s request failed: %v", provider, err))
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP date form.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
