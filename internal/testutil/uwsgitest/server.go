// Package uwsgitest runs an in-process uwsgi application server for tests.
package uwsgitest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/danmuck/uwsgictl/internal/protocol/packet"
)

// Request is one packet received by the server.
type Request struct {
	Header packet.Header
	Vars   map[string]string
	Order  []string
	Body   []byte
}

// Reply is written back as an HTTP/1.1 response.
type Reply struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

type Handler func(req Request) Reply

// ConnHandler writes its own reply bytes to conn, e.g. to stall or cut a response.
type ConnHandler func(conn net.Conn, req Request)

type Server struct {
	ln      net.Listener
	respond ConnHandler
	wg      sync.WaitGroup

	mu       sync.Mutex
	requests []Request
}

// Start listens on a loopback port and closes the server with t.Cleanup.
func Start(t testing.TB, handler Handler) *Server {
	t.Helper()
	return StartConn(t, func(conn net.Conn, req Request) {
		_, _ = conn.Write(EncodeReply(handler(req)))
	})
}

// StartConn is Start with a handler that owns the reply side of the connection.
func StartConn(t testing.TB, respond ConnHandler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("uwsgitest listen: %v", err)
	}
	s := &Server{ln: ln, respond: respond}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) Close() {
	_ = s.ln.Close()
	s.wg.Wait()
}

// Requests returns the packets received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	br := bufio.NewReader(conn)
	h, v, err := packet.ReadPacket(br)
	if err != nil {
		return
	}
	req := Request{Header: h, Vars: v.Map()}
	for _, kv := range v.List() {
		req.Order = append(req.Order, kv.Name)
	}
	if n, err := strconv.Atoi(req.Vars["CONTENT_LENGTH"]); err == nil && n > 0 {
		req.Body = make([]byte, n)
		if _, err := io.ReadFull(br, req.Body); err != nil {
			return
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	s.respond(conn, req)
}

// EncodeReply renders r as an HTTP/1.1 response with a content-length unless one is set.
func EncodeReply(r Reply) []byte {
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	headers := make(map[string]string, len(r.Headers)+1)
	for k, v := range r.Headers {
		headers[k] = v
	}
	if _, ok := headers["Content-Length"]; !ok {
		headers["Content-Length"] = strconv.Itoa(len(r.Body))
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, http.StatusText(status)))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %s\r\n", k, headers[k])...)
	}
	out = append(out, "\r\n"...)
	return append(out, r.Body...)
}
