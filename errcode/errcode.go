// Package errcode provides coded errors for sentinel-eye.
// Every error surfaced by the engine, the providers, or the dashboard carries
// a stable machine code of the form E_[A-Z0-9_]+ followed by ": " and a
// human-readable message, so callers can branch on the code without parsing
// prose.
package errcode

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Stable error codes. The set is closed: new codes are added here, never
// invented inline.
const (
	// Input validation.
	ArgRequired = "E_SENTINEL_ARG_REQUIRED"
	ArgInvalid  = "E_SENTINEL_ARG_INVALID"
	ArgUnknown  = "E_SENTINEL_ARG_UNKNOWN"
	Help        = "E_SENTINEL_HELP"

	// Config.
	ConfigNotFound    = "E_SENTINEL_CONFIG_NOT_FOUND"
	ConfigRead        = "E_SENTINEL_CONFIG_READ"
	ConfigInvalidJSON = "E_SENTINEL_CONFIG_INVALID_JSON"
	ConfigInvalid     = "E_SENTINEL_CONFIG_INVALID"

	// Context resolution.
	Git                    = "E_SENTINEL_GIT"
	RepoResolveFailed      = "E_SENTINEL_REPO_RESOLVE_FAILED"
	PRResolveFailed        = "E_SENTINEL_PR_RESOLVE_FAILED"
	AuthMissing            = "E_SENTINEL_AUTH_MISSING"
	ProviderUnsupported    = "E_PROVIDER_UNSUPPORTED"
	ProviderNotImplemented = "E_SENTINEL_PROVIDER_NOT_IMPLEMENTED"

	// Provider runtime.
	APIError                   = "E_SENTINEL_API_ERROR"
	NotificationsScopeRequired = "E_SENTINEL_NOTIFICATIONS_SCOPE_REQUIRED"

	// Dashboard.
	DashboardPending          = "E_DASHBOARD_PENDING"
	DashboardUnknown          = "E_DASHBOARD_UNKNOWN"
	DashboardAuthRequired     = "E_DASHBOARD_AUTH_REQUIRED"
	DashboardAssetForbidden   = "E_DASHBOARD_ASSET_FORBIDDEN"
	DashboardMethodNotAllowed = "E_DASHBOARD_METHOD_NOT_ALLOWED"
	DashboardPortInUse        = "E_DASHBOARD_PORT_IN_USE"
	DashboardServerStart      = "E_DASHBOARD_SERVER_START"
	DashboardAssetsMissing    = "E_DASHBOARD_ASSETS_MISSING"
)

// Error is an error carrying a stable machine code and optional structured
// details (used by the dashboard error envelope).
type Error struct {
	Code        string
	Message     string
	Remediation string
	Details     map[string]any
	err         error
}

// Error renders the canonical "CODE: message" form.
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// New creates a coded error with a formatted message.
func New(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error whose message is the wrapped error's text,
// preserving the cause for errors.Is/As.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), err: err}
}

// WithRemediation attaches a remediation hint and returns the error.
func (e *Error) WithRemediation(hint string) *Error {
	e.Remediation = hint
	return e
}

// WithDetails attaches structured details and returns the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// codePattern matches a leading machine code in rendered error text.
var codePattern = regexp.MustCompile(`^([A-Z0-9_]+):\s*(.*)$`)

// CodeOf extracts the machine code from an error. Coded errors report their
// code field directly; plain errors are matched against the leading
// "CODE: message" form. Errors without a recognizable code map to
// E_DASHBOARD_UNKNOWN.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	if m := codePattern.FindStringSubmatch(err.Error()); m != nil {
		return m[1]
	}
	return DashboardUnknown
}

// MessageOf extracts the human message from an error, stripping a leading
// machine code when present.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	if m := codePattern.FindStringSubmatch(err.Error()); m != nil {
		return m[2]
	}
	return err.Error()
}

// DetailsOf returns the structured details of a coded error, or nil.
func DetailsOf(err error) map[string]any {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Details
	}
	return nil
}

// retryableCodes is the closed set of codes that merit exponential backoff
// rather than immediate surfacing.
var retryableCodes = map[string]bool{
	APIError:                   true,
	AuthMissing:                true,
	NotificationsScopeRequired: true,
	DashboardAuthRequired:      true,
}

// IsRetryable reports whether an error indicates a transient condition.
// Beyond the explicit code set, rate-limit and timeout markers in the
// message are treated as retryable. E_PROVIDER_UNSUPPORTED is never
// retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	code := CodeOf(err)
	if code == ProviderUnsupported {
		return false
	}
	if retryableCodes[code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "status=429") || strings.Contains(msg, "timed out")
}
