package lowering

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// ErrorKind classifies lowering failures so callers can react differently
// to "not implementable here" and "bad model data" without parsing
// messages.
type ErrorKind int

const (
	// KindNone means the error carries no lowering kind (or is nil).
	KindNone ErrorKind = iota

	// KindUnsupported marks constructs that were recognized but cannot be
	// implemented by this layer, e.g. a rank > 4 weights transpose or an
	// unmapped dtype. Callers usually pick an alternate lowering strategy.
	KindUnsupported

	// KindInvalidInput marks model data violating a stated precondition,
	// e.g. an illegal broadcast or a malformed tensor payload.
	KindInvalidInput

	// KindInternal marks a violated invariant this layer is itself
	// responsible for. It is a defect, not attributable to user input.
	KindInternal
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnsupported:
		return "unsupported"
	case KindInvalidInput:
		return "invalid_input"
	case KindInternal:
		return "internal"
	default:
		return "invalid_kind"
	}
}

// kindError attaches an ErrorKind to an error built with pkg/errors, so the
// stack trace of the cause is preserved and the kind survives further
// WithMessagef wrapping.
type kindError struct {
	kind ErrorKind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// Unsupportedf creates a KindUnsupported error.
func Unsupportedf(format string, args ...any) error {
	return &kindError{kind: KindUnsupported, err: errors.Errorf(format, args...)}
}

// InvalidInputf creates a KindInvalidInput error.
func InvalidInputf(format string, args ...any) error {
	return &kindError{kind: KindInvalidInput, err: errors.Errorf(format, args...)}
}

// Internalf creates a KindInternal error.
func Internalf(format string, args ...any) error {
	return &kindError{kind: KindInternal, err: errors.Errorf(format, args...)}
}

// Kind returns the ErrorKind of err, unwrapping as needed, or KindNone.
func Kind(err error) ErrorKind {
	var ke *kindError
	if stderrors.As(err, &ke) {
		return ke.kind
	}
	return KindNone
}
