package geo

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures crossing the conversion core boundary.
type ErrorKind string

const (
	KindInputShape        ErrorKind = "input_shape"
	KindDecode            ErrorKind = "decode"
	KindCoordinateInvalid ErrorKind = "coordinate_invalid"
	KindIncomplete        ErrorKind = "incomplete"
	KindUnsupported       ErrorKind = "unsupported"
	KindDownstreamIO      ErrorKind = "downstream_io"
	KindCanceled          ErrorKind = "canceled"
)

// Error is the typed error returned by parsers, serializers and renderers.
type Error struct {
	Err  error
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}

	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a typed error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying error.
func WrapError(kind ErrorKind, err error, msg string) error {
	if err == nil {
		return nil
	}

	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the first typed error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}
