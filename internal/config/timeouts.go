package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Provision         time.Duration // Timeout for infrastructure provisioning
	Destroy           time.Duration // Timeout for infrastructure teardown
	RemoteCommand     time.Duration // Default timeout for one remote command
	FileTransfer      time.Duration // Timeout for one file transfer
	CredentialWait    time.Duration // How long workers wait for the join credential
	Verify            time.Duration // Timeout for the verification phase
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - KUBEBOOT_TIMEOUT_PROVISION (default: 15m)
//   - KUBEBOOT_TIMEOUT_DESTROY (default: 10m)
//   - KUBEBOOT_TIMEOUT_REMOTE_COMMAND (default: 10m)
//   - KUBEBOOT_TIMEOUT_FILE_TRANSFER (default: 2m)
//   - KUBEBOOT_TIMEOUT_CREDENTIAL_WAIT (default: 5m)
//   - KUBEBOOT_TIMEOUT_VERIFY (default: 5m)
//   - KUBEBOOT_RETRY_MAX_ATTEMPTS (default: 5)
//   - KUBEBOOT_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Provision:         parseDuration("KUBEBOOT_TIMEOUT_PROVISION", 15*time.Minute),
		Destroy:           parseDuration("KUBEBOOT_TIMEOUT_DESTROY", 10*time.Minute),
		RemoteCommand:     parseDuration("KUBEBOOT_TIMEOUT_REMOTE_COMMAND", 10*time.Minute),
		FileTransfer:      parseDuration("KUBEBOOT_TIMEOUT_FILE_TRANSFER", 2*time.Minute),
		CredentialWait:    parseDuration("KUBEBOOT_TIMEOUT_CREDENTIAL_WAIT", 5*time.Minute),
		Verify:            parseDuration("KUBEBOOT_TIMEOUT_VERIFY", 5*time.Minute),
		RetryMaxAttempts:  parseInt("KUBEBOOT_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("KUBEBOOT_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
