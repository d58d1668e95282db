package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can decide on retry and response
// mapping without string matching.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation is bad input (coordinate, date, date list).
	KindValidation
	// KindConfig is a missing or malformed setting, e.g. a provider credential.
	KindConfig
	// KindRange is a date outside the allowed forecast window or a reversed window.
	KindRange
	// KindTransient is a network failure that survived every retry attempt.
	KindTransient
	// KindUpstream is a malformed payload or a provider-reported error.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfig:
		return "config"
	case KindRange:
		return "range"
	case KindTransient:
		return "transient"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Constructors

func Validationf(op, format string, a ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, a...)}
}

func Configf(op, format string, a ...any) error {
	return &Error{Kind: KindConfig, Op: op, Msg: fmt.Sprintf(format, a...)}
}

func Rangef(op, format string, a ...any) error {
	return &Error{Kind: KindRange, Op: op, Msg: fmt.Sprintf(format, a...)}
}

func Upstreamf(op, format string, a ...any) error {
	return &Error{Kind: KindUpstream, Op: op, Msg: fmt.Sprintf(format, a...)}
}

// Wrap attaches kind and op to cause. A nil cause yields nil.
func Wrap(cause error, kind Kind, op, msg string) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// KindOf returns the Kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, k Kind) bool { return KindOf(err) == k }
