package core

import "errors"

// Kind is a machine-readable error category.
type Kind string

const (
	// KindUnsupportedProvider indicates no provider is registered for the identifier.
	KindUnsupportedProvider Kind = "unsupported_provider"
	// KindExtraction indicates the diagnostic command sequence failed.
	KindExtraction Kind = "extraction_failure"
	// KindTemplateMissing indicates a required rendering template is absent.
	KindTemplateMissing Kind = "template_missing"
	// KindDecode indicates a malformed request or response.
	KindDecode Kind = "decode_failure"
	// KindUnexpected is the catch-all.
	KindUnexpected Kind = "unexpected_failure"
)

// ErrNoPlan is wrapped when a provider ran successfully but produced no plan.
var ErrNoPlan = errors.New("database returned no execution plan")

// Error carries a kind, a human-readable message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches kind and msg to err. It returns nil when err is nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// New returns an error without a cause.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// KindOf reports the kind of the first *Error in err's chain.
// Errors without one are KindUnexpected; nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
