package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RawResponse is the application server's reply before body decoding.
type RawResponse struct {
	StatusCode    int
	StatusMessage string
	// Headers holds lower-cased names; repeated headers are joined with ", ".
	Headers map[string]string
	// Values keeps every value of each lower-cased header name.
	Values map[string][]string
	Body   io.Reader
}

// Stream is one request/response exchange on an open connection.
type Stream interface {
	Write(p []byte) (int, error)
	// CloseWrite signals the end of the request bytes.
	CloseWrite() error
	ReadResponse() (*RawResponse, error)
	// Close may be called from another goroutine to abort a blocked Write or ReadResponse
	// or a body read in progress.
	Close() error
}

// Transport opens streams to the application server.
type Transport interface {
	Open(ctx context.Context) (Stream, error)
}

// Dialer opens one connection per stream over tcp or a unix socket.
type Dialer struct {
	cfg Config
}

var _ Transport = (*Dialer)(nil)

func NewDialer(cfg Config) (*Dialer, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dialer{cfg: cfg}, nil
}

func (d *Dialer) Config() Config {
	return d.cfg
}

func (d *Dialer) Open(ctx context.Context) (Stream, error) {
	dialer := net.Dialer{Timeout: d.cfg.ConnectTimeout}
	c, err := dialer.DialContext(ctx, d.cfg.Network, d.cfg.Address)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("network", d.cfg.Network).
		Str("addr", d.cfg.Address).
		Str("local", c.LocalAddr().String()).
		Msg("transport_dial")
	return NewStream(c, d.cfg), nil
}

type stream struct {
	conn      net.Conn
	br        *bufio.Reader
	cfg       Config
	closeOnce sync.Once
	closeErr  error

	mu   sync.Mutex
	resp *http.Response
}

// NewStream wraps an established connection.
func NewStream(c net.Conn, cfg Config) Stream {
	return &stream{conn: c, br: bufio.NewReader(c), cfg: cfg}
}

func (s *stream) Write(p []byte) (int, error) {
	if s.cfg.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return 0, err
		}
	}
	return s.conn.Write(p)
}

func (s *stream) CloseWrite() error {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (s *stream) ReadResponse() (*RawResponse, error) {
	if s.cfg.ReadTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return nil, err
		}
	}
	resp, err := http.ReadResponse(s.br, nil)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.resp = resp
	s.mu.Unlock()
	return &RawResponse{
		StatusCode:    resp.StatusCode,
		StatusMessage: statusMessage(resp.Status, resp.StatusCode),
		Headers:       flattenHeaders(resp.Header),
		Values:        headerValues(resp.Header),
		Body:          resp.Body,
	}, nil
}

// Close shuts the connection before the response body so a body read in
// progress returns instead of holding the body lock.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		s.mu.Lock()
		resp := s.resp
		s.mu.Unlock()
		if resp != nil {
			_ = resp.Body.Close()
		}
	})
	return s.closeErr
}

func statusMessage(status string, code int) string {
	return strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code)))
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}

func headerValues(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		name := strings.ToLower(k)
		out[name] = append(out[name], v...)
	}
	return out
}
