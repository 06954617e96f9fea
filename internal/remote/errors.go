package remote

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/lib/pq"
)

type ErrorKind int

const (
	// Transient failures may succeed if retried.
	Transient ErrorKind = iota
	// Permanent failures are rejected by the store and will fail again.
	Permanent
)

func (k ErrorKind) String() string {
	if k == Transient {
		return "transient"
	}
	return "permanent"
}

// Error wraps a store failure with its classification.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("remote %s (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("remote %s %s (%s): %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == Transient
}

func IsPermanent(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == Permanent
}

// Classify wraps err in an *Error for op on path. Errors that are already
// classified keep their kind. Anything unrecognized is treated as
// permanent so it is surfaced instead of retried forever.
func Classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{Kind: kindOf(err), Op: op, Path: path, Err: err}
}

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return Transient
	case errors.Is(err, context.Canceled):
		return Permanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqKind(pqErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Transient
	}
	return Permanent
}

// pqKind maps SQLSTATE codes. Connection exceptions, resource exhaustion,
// operator intervention and rollbacks (serialization failures, deadlocks)
// are retryable; everything else is a rejection.
func pqKind(e *pq.Error) ErrorKind {
	switch e.Code.Class() {
	case "08", "53", "57", "40":
		return Transient
	default:
		return Permanent
	}
}
