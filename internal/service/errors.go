package service

import (
	"errors"
	"fmt"
)

// Error classes surfaced to the HTTP edge. Every error returned by this package wraps
// at most one of them; anything unwrapped is an internal error.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrNotFound            = errors.New("not found")
	ErrPayloadTooLarge     = errors.New("payload too large")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	ErrGatewayTimeout      = errors.New("upstream timeout")

	// ErrRequestCanceled means the caller went away before the gateway answered.
	ErrRequestCanceled = errors.New("request canceled")
)

var (
	// ErrTransferStalled ends a download whose upstream stopped producing bytes.
	ErrTransferStalled = fmt.Errorf("%w: transfer stalled", ErrGatewayTimeout)
	// ErrTransferAborted ends a download whose client went away.
	ErrTransferAborted = errors.New("transfer aborted by client")
)

// RangeError is returned for an unsatisfiable Range header. Size is the full object
// size the client should be told about.
type RangeError struct {
	Size int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range not satisfiable for object of %d bytes", e.Size)
}

func (e *RangeError) Unwrap() error { return ErrRangeNotSatisfiable }
