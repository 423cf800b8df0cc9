package registry

import "github.com/pkg/errors"

type (
	errKind struct {
		kind string
		msg  string
	}
)

func (e *errKind) Error() string { return e.msg }
func (e *errKind) Kind() string  { return e.kind }

func newErr(kind, format string, a ...any) error {
	return &errKind{kind: kind, msg: errors.Errorf(format, a...).Error()}
}

func ErrCorrupted(format string, a ...any) error {
	return newErr("ServiceInCorruptedState", format, a...)
}

func ErrIncompatibleType(format string, a ...any) error {
	return newErr("IncompatibleType", format, a...)
}

func ErrIncompatibleMessagingPattern(format string, a ...any) error {
	return newErr("IncompatibleMessagingPattern", format, a...)
}

func ErrIncompatibleBufferSize(format string, a ...any) error {
	return newErr("IncompatibleBufferSize", format, a...)
}

func ErrExceedsMaxSupported(what string) error {
	return newErr("ExceedsMaxSupported", "exceeds max supported %s", what)
}

func ErrHangsInCreation(format string, a ...any) error {
	return newErr("HangsInCreation", format, a...)
}

// Kind recovers the stable error code of err, or "" if err is not one of
// this package's typed errors.
func Kind(err error) string {
	var e *errKind
	if errors.As(err, &e) {
		return e.kind
	}
	return ""
}
