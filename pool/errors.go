package pool

import "errors"

var (
	// ErrPoolExhausted is returned when no connection slot frees up before
	// the acquire deadline.
	ErrPoolExhausted = errors.New("pool: exhausted")

	// ErrPoolClosed is returned by Acquire after CloseAll, and by any
	// connection handle used after CloseAll.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrDoubleRelease is returned when a handle is released twice.
	ErrDoubleRelease = errors.New("pool: connection released twice")

	// ErrConnReleased is returned when a handle is used after Release.
	ErrConnReleased = errors.New("pool: connection already released")
)

// ConnectionError reports that the backing store could not be reached.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "pool: cannot reach database: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }
