package session

import "fmt"

// NetworkError wraps a transport failure. It is retryable: the session
// transitions to Reconnecting and retries with capped exponential backoff.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func IsNetworkError(err error) bool {
	_, ok := err.(*NetworkError)
	return ok
}

// AuthError is returned when the server refuses the slot credentials. It is
// not retryable without user action.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func IsAuthError(err error) bool {
	_, ok := err.(*AuthError)
	return ok
}

// VersionMismatchError is returned when the server speaks a different
// protocol version. It is terminal for the attempt and names both versions
// so the player can fix the mismatch themselves.
type VersionMismatchError struct {
	Expected string
	Actual   string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("protocol version mismatch: this client speaks version %s but the server speaks version %s", e.Expected, e.Actual)
}

func IsVersionMismatch(err error) bool {
	_, ok := err.(*VersionMismatchError)
	return ok
}
