package duplex

import (
	"errors"
	"fmt"
)

var (
	// ErrPrematureClose is matched by errors that report an end closing
	// before it ended or finished cleanly.
	ErrPrematureClose = errors.New("premature close")

	// ErrWritePending is returned by TryWrite while an earlier write is
	// still waiting for drain.
	ErrWritePending = errors.New("write pending: wait for drain")

	// ErrWriteAfterEnd is returned by writes issued after End.
	ErrWriteAfterEnd = errors.New("write after end")
)

// ErrorKind classifies the terminal error of a composer.
type ErrorKind int

const (
	// KindDestroyed marks an error signaled by one of the attached ends.
	KindDestroyed ErrorKind = iota
	// KindPrematureClose marks an end that closed before its clean end or finish.
	KindPrematureClose
	// KindLink marks a failure while linking pipeline stages.
	KindLink
)

func (k ErrorKind) String() string {
	switch k {
	case KindDestroyed:
		return "destroyed"
	case KindPrematureClose:
		return "premature_close"
	case KindLink:
		return "link"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the terminal error produced by the composer itself.
type Error struct {
	Kind ErrorKind
	// Op names the face or step that failed: "readable", "writable" or "link".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("duplex %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("duplex %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports premature-close errors as ErrPrematureClose even when Err holds
// something else.
func (e *Error) Is(target error) bool {
	return target == ErrPrematureClose && e.Kind == KindPrematureClose
}

// KindOf returns the kind of a terminal error. The second result is false
// when err was not produced by a composer.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

func prematureClose(op string) error {
	return &Error{Kind: KindPrematureClose, Op: op, Err: ErrPrematureClose}
}

func endFailed(op string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindDestroyed, Op: op, Err: err}
}

func linkFailed(err error) error {
	return &Error{Kind: KindLink, Op: "link", Err: err}
}
