package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *SyncError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *SyncError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// TransportFailed creates a push transport failure error
func TransportFailed(endpoint string, err error) *SyncError {
	return Wrap(err, ErrCodeTransportFailed, fmt.Sprintf("push transport to %s failed", endpoint)).
		WithDetail("endpoint", endpoint)
}

// HandshakeRejected creates an error for a server refusing the push handshake
func HandshakeRejected(endpoint string, reason string) *SyncError {
	return New(ErrCodeHandshakeRejected, fmt.Sprintf("push handshake rejected: %s", reason)).
		WithDetail("endpoint", endpoint)
}

// HeartbeatTimeout creates an error for a connection that went silent
func HeartbeatTimeout(silence string) *SyncError {
	return New(ErrCodeHeartbeatTimeout, fmt.Sprintf("no traffic from server for %s", silence)).
		WithDetail("silence", silence)
}

// MalformedPayload creates an error for a push frame that could not be decoded
func MalformedPayload(err error) *SyncError {
	return Wrap(err, ErrCodeMalformedPayload, "malformed notification payload")
}

// RequestFailed creates a data service error from a non-success HTTP status
func RequestFailed(method, path string, status int) *SyncError {
	code := ErrCodeRequestFailed
	if status == 401 {
		code = ErrCodeUnauthorized
	}
	return New(code, fmt.Sprintf("%s %s returned status %d", method, path, status)).
		WithDetail("method", method).
		WithDetail("path", path).
		WithDetail("status", status)
}

// SnapshotFailed creates an error for a failed snapshot load
func SnapshotFailed(err error) *SyncError {
	return Wrap(err, ErrCodeSnapshotFailed, "could not load notifications")
}

// CommandFailed creates an error for a server-side command failure
func CommandFailed(command string, id int64, err error) *SyncError {
	syncErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", command)).
		WithDetail("command", command)
	if id != 0 {
		syncErr = syncErr.WithDetail("id", id)
	}
	return syncErr
}

// NotAuthenticated creates an error for operations that need a session
func NotAuthenticated() *SyncError {
	return New(ErrCodeNotAuthenticated, "no authenticated session; run 'notifsync login'")
}
