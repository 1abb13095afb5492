package client

import "github.com/danmuck/uwsgictl/internal/transport"

type writeState int

const (
	stateInit writeState = iota
	stateHeaderComposed
	stateSent
)

func (s writeState) String() string {
	switch s {
	case stateHeaderComposed:
		return "header_composed"
	case stateSent:
		return "sent"
	default:
		return "init"
	}
}

// requestWriter sends the packet ahead of the first body byte.
// compose runs at most once, on the first Write or End.
type requestWriter struct {
	stream  transport.Stream
	compose func() ([]byte, error)
	state   writeState

	packetLen int
	bodyLen   int
}

func newRequestWriter(stream transport.Stream, compose func() ([]byte, error)) *requestWriter {
	return &requestWriter{stream: stream, compose: compose}
}

func (w *requestWriter) Write(p []byte) error {
	if w.state == stateSent {
		return ErrWriteAfterEnd
	}
	if err := w.sendHeader(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	n, err := w.stream.Write(p)
	w.bodyLen += n
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// End terminates the write side, composing the packet first if nothing was written.
func (w *requestWriter) End() error {
	if w.state == stateSent {
		return nil
	}
	if err := w.sendHeader(); err != nil {
		return err
	}
	w.state = stateSent
	if err := w.stream.CloseWrite(); err != nil {
		return &TransportError{Op: "close_write", Err: err}
	}
	return nil
}

func (w *requestWriter) sendHeader() error {
	if w.state != stateInit {
		return nil
	}
	pkt, err := w.compose()
	if err != nil {
		return err
	}
	w.state = stateHeaderComposed
	w.packetLen = len(pkt)
	if _, err := w.stream.Write(pkt); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}
