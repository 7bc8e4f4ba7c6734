package hcloud

import (
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// isResourceLocked checks if an error indicates a resource is locked.
// Locked resources occur while another operation holds them; these errors
// are retryable.
func isResourceLocked(err error) bool {
	if err == nil {
		return false
	}
	if hcloud.IsError(err,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceLocked,
		hcloud.ErrorCodeRateLimitExceeded,
	) {
		return true
	}

	// errors raised outside the API client carry no code
	errStr := err.Error()
	return strings.Contains(errStr, "locked") ||
		strings.Contains(errStr, "conflict") ||
		strings.Contains(errStr, "is busy")
}

// isInvalidParameter checks if an error indicates invalid parameters.
// These errors are fatal and should not be retried.
func isInvalidParameter(err error) bool {
	if err == nil {
		return false
	}
	if hcloud.IsError(err,
		hcloud.ErrorCodeInvalidInput,
		hcloud.ErrorCodeNotFound,
		hcloud.ErrorCodeInvalidServerType,
		hcloud.ErrorCodeUniquenessError,
	) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "invalid") ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "does not exist")
}
