package circuit

import "strings"

// CategorizeError classifies an SSH/Docker connectivity error for the
// breaker's trip logic. Unlike the teacher's HTTP-provider categorizer
// (rate limits, payment-required), the errors this pool sees come from
// dialing a host or running a remote command, so the categories are
// connection-shaped instead.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryTransient
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "authentication failed") ||
		strings.Contains(msg, "unable to authenticate"):
		// A bad key/credential will not fix itself by waiting.
		return ErrorCategoryFatal
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "malformed"):
		return ErrorCategoryInvalid
	default:
		// Connection refused, i/o timeout, host unreachable, EOF mid-session:
		// all worth a backoff-and-retry.
		return ErrorCategoryTransient
	}
}
