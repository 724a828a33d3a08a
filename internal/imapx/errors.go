package imapx

import (
	"errors"
	"fmt"
	"strings"
)

// The session distinguishes six failure classes. Restricted-access and
// stale-handle conditions are expected during normal operation against some
// providers and must be handled distinctly from true failures, so they get
// their own types instead of flowing through generic errors.

// ConnectError wraps transport or TLS failures during connection establishment
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("connect failed: %v", e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// AuthError wraps credential rejections. Fatal for the current sync attempt
// and never retried automatically.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// RestrictedAccessError marks a provider-specific security-policy rejection of
// one folder. Non-fatal: callers skip the folder and continue.
type RestrictedAccessError struct {
	Folder string
	Err    error
}

func (e *RestrictedAccessError) Error() string {
	return fmt.Sprintf("folder %q restricted by provider policy: %v", e.Folder, e.Err)
}
func (e *RestrictedAccessError) Unwrap() error { return e.Err }

// StaleHandleError marks a previously-open folder handle that has become
// invalid. Recovered transparently inside the session up to a retry bound.
type StaleHandleError struct {
	Folder string
	Err    error
}

func (e *StaleHandleError) Error() string {
	return fmt.Sprintf("stale handle on folder %q: %v", e.Folder, e.Err)
}
func (e *StaleHandleError) Unwrap() error { return e.Err }

// NetworkError wraps transient transport failures, including command timeouts
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// IsRestrictedAccess reports whether err is a restricted-access rejection
func IsRestrictedAccess(err error) bool {
	var r *RestrictedAccessError
	return errors.As(err, &r)
}

// IsAuth reports whether err is an authentication failure
func IsAuth(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}

// IsStaleHandle reports whether err indicates an invalidated folder handle
func IsStaleHandle(err error) bool {
	var s *StaleHandleError
	if errors.As(err, &s) {
		return true
	}
	return matchesAny(err, staleSignatures)
}

// IsNetwork reports whether err is a transient transport failure
func IsNetwork(err error) bool {
	var n *NetworkError
	if errors.As(err, &n) {
		return true
	}
	return matchesAny(err, networkSignatures)
}

// Signature tables for classifying free-text server responses. The upstream
// protocol does not expose structured error codes for these conditions, so
// classification is by known literal substrings. Kept narrow and table-driven
// so new provider strings are a one-line change.

// restrictedSignatures match provider security-policy rejections of a folder.
// NetEase answers "Unsafe Login" until the user authorizes third-party
// clients; QQ asks for an authorization code.
var restrictedSignatures = []string{
	"unsafe login",
	"please using authorized code",
	"authorized code",
	"login is disabled",
	"unauthorized login",
	"access denied",
}

// staleSignatures match responses telling us the folder handle we held is gone
var staleSignatures = []string{
	"mailbox closed",
	"folder closed",
	"no mailbox selected",
	"not in selected state",
	"invalid state",
	"mailbox is not selected",
}

// networkSignatures match transient transport failures
var networkSignatures = []string{
	"connection closed",
	"connection reset",
	"connection refused",
	"broken pipe",
	"network is unreachable",
	"no route to host",
	"i/o timeout",
	"timeout",
	"eof",
	"use of closed network connection",
}

// authSignatures match credential rejections from LOGIN
var authSignatures = []string{
	"authentication failed",
	"authenticationfailed",
	"invalid credentials",
	"login failed",
	"username or password",
	"password error",
}

// matchesRestricted reports whether a raw server error carries a known
// restricted-access signature
func matchesRestricted(err error) bool {
	return matchesAny(err, restrictedSignatures)
}

// matchesAuth reports whether a raw server error carries a known
// bad-credentials signature
func matchesAuth(err error) bool {
	return matchesAny(err, authSignatures)
}

func matchesAny(err error, signatures []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range signatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
