package client

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout         = errors.New("client: uwsgi request timeout")
	ErrWriteAfterEnd   = errors.New("client: write after end")
	ErrTransportNeeded = errors.New("client: transport required")
)

// TransportError is a connection failure, passed through without retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("client: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is returned for responses outside [200,300). The decoded response is attached.
type StatusError struct {
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: uwsgi status %d %s", e.Response.Status, e.Response.StatusText)
}
