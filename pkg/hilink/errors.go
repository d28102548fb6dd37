package hilink

import (
	"errors"
	"fmt"
)

// errors from the device engine
var (
	// ErrDeviceUnreachable is a transport failure or timeout talking to the device.
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrProtocol means the device answered but an expected XML field was missing.
	ErrProtocol = errors.New("unexpected device response")

	// ErrAuthFailed is a classified login rejection, see AuthFailedError.
	ErrAuthFailed = errors.New("login rejected")

	// ErrAuthExpired is returned when a request still fails authentication after one re-login.
	ErrAuthExpired = errors.New("session expired")

	// ErrIPChangeFailed is returned for any failure inside the rotation procedure.
	ErrIPChangeFailed = errors.New("ip change failed")

	// ErrTokenSpent is returned when a verification token is used a second time.
	ErrTokenSpent = errors.New("verification token already used")
)

// device error codes
const (
	codeNoRights          = "100003"
	codeWrongUsername     = "108001"
	codeWrongPassword     = "108002"
	codeAlreadyLoggedIn   = "108003"
	codeTooManySessions   = "108005"
	codeWrongPasswordAlt  = "108006"
	codeTooManyAttempts   = "108007"
	codeSessionInvalid    = "125001"
	codeSessionIDInvalid  = "125002"
	codeTokenInvalid      = "125003"
	defaultLoginErrReason = "login rejected by device"
)

var loginReasons = map[string]string{
	codeWrongUsername:    "wrong username",
	codeWrongPassword:    "wrong password",
	codeWrongPasswordAlt: "wrong password",
	codeAlreadyLoggedIn:  "another session is already logged in",
	codeTooManySessions:  "too many sessions logged in",
	codeTooManyAttempts:  "too many login attempts",
	codeSessionInvalid:   "invalid session",
	codeSessionIDInvalid: "invalid session",
	codeTokenInvalid:     "invalid verification token",
	codeNoRights:         "not authorized",
}

// AuthFailedError carries the device error code of a rejected login
type AuthFailedError struct {
	Code   string
	Reason string
	// WaitTime is the lockout in minutes reported with codeTooManyAttempts
	WaitTime string
}

func newAuthFailed(code, waitTime string) *AuthFailedError {
	reason, ok := loginReasons[code]
	if !ok {
		reason = defaultLoginErrReason
	}
	return &AuthFailedError{Code: code, Reason: reason, WaitTime: waitTime}
}

func (e *AuthFailedError) Error() string {
	msg := e.Reason
	if e.WaitTime != "" {
		msg = fmt.Sprintf("%s, retry in %s minutes", msg, e.WaitTime)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (code %s)", msg, e.Code)
	}
	return msg
}

func (e *AuthFailedError) Is(target error) bool {
	return target == ErrAuthFailed
}

// DeviceError is an <error> response that is not an authentication failure
type DeviceError struct {
	Path string
	Code string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device returned error code %s for %s", e.Code, e.Path)
}

// IPChangeError reports where a rotation stopped and the last WAN IP known at that point
type IPChangeError struct {
	Step   string
	LastIP string
	Err    error
}

func (e *IPChangeError) Error() string {
	return fmt.Sprintf("ip change failed at %s (last ip %s): %v", e.Step, e.LastIP, e.Err)
}

func (e *IPChangeError) Unwrap() error {
	return e.Err
}

func (e *IPChangeError) Is(target error) bool {
	return target == ErrIPChangeFailed
}

// isAuthCode reports whether an <error> code means the session or token is no longer valid.
// An error element without a code is treated the same way.
func isAuthCode(code string) bool {
	switch code {
	case "", codeNoRights, codeSessionInvalid, codeSessionIDInvalid, codeTokenInvalid:
		return true
	}
	return false
}

// outcome is the metrics label for err
func outcome(err error) string {
	var devErr *DeviceError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDeviceUnreachable):
		return "unreachable"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, ErrAuthExpired):
		return "auth_expired"
	case errors.As(err, &devErr):
		return "device_error"
	}
	return "error"
}
