package autherr

import "errors"

// Kind categorizes an auth error for consistent handling & event payloads.
type Kind string

const (
	Validation       Kind = "validation"
	NotFound         Kind = "not_found"
	ProviderRejected Kind = "provider_rejected"
	SessionGone      Kind = "session_gone"
	Internal         Kind = "internal"
)

// rejectedCodes is the fixed set of provider error codes that mean the
// token itself was rejected and must be dropped locally. The set is
// policy; do not grow or shrink it without revisiting the removal
// behavior in the token manager.
var rejectedCodes = map[string]bool{
	"invalid_grant":   true,
	"invalid_token":   true,
	"invalid_request": true,
}

// Error is a structured auth error.
type Error struct {
	Kind    Kind
	Message string
	Code    string // provider error code, when one was returned
	Err     error  // optional underlying error

	// Set on renewal failures so event consumers know which token died.
	TokenKey    string
	AccessToken bool
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// New constructs a new auth Error.
func New(k Kind, msg string, err error) *Error { return &Error{Kind: k, Message: msg, Err: err} }

// FromProviderCode classifies a provider error response code.
func FromProviderCode(code, desc string) *Error {
	k := Internal
	if rejectedCodes[code] {
		k = ProviderRejected
	}
	if desc == "" {
		desc = code
	}
	return &Error{Kind: k, Message: desc, Code: code}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == k
	}
	return false
}
