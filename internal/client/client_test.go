package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/uwsgictl/internal/protocol"
	"github.com/danmuck/uwsgictl/internal/testutil/testlog"
	"github.com/danmuck/uwsgictl/internal/testutil/uwsgitest"
	"github.com/danmuck/uwsgictl/internal/transport"
)

func newTestClient(t *testing.T, addr string, mutate func(*Config)) *Client {
	t.Helper()
	d, err := transport.NewDialer(transport.Config{Address: addr})
	if err != nil {
		t.Fatalf("dialer: %v", err)
	}
	cfg := DefaultConfig().WithAddress(addr)
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(d, cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

func jsonReply(status int, body string) uwsgitest.Reply {
	return uwsgitest.Reply{
		Status:  status,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(body),
	}
}

func TestDoGetWithoutBody(t *testing.T) {
	testlog.Start(t)
	srv := uwsgitest.Start(t, func(req uwsgitest.Request) uwsgitest.Reply {
		return jsonReply(http.StatusOK, `{"ok":true}`)
	})
	c := newTestClient(t, srv.Addr(), nil)

	resp, err := c.Do(context.Background(), Options{
		Method:  "get",
		Path:    "/foo%20bar?a=1",
		Headers: map[string]string{"Host": "example.com", "X-Test": "v"},
		Form:    map[string]string{"ignored": "yes"},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.Status != 200 || resp.StatusText != "OK" {
		t.Fatalf("unexpected status: %d %q", resp.Status, resp.StatusText)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok || data["ok"] != true {
		t.Fatalf("unexpected data: %#v", resp.Data)
	}
	if resp.Headers["content-type"] != "application/json" {
		t.Fatalf("expected lower-cased headers, got %v", resp.Headers)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	got := reqs[0]
	if got.Header.Modifier1 != 5 || got.Header.Modifier2 != 0 {
		t.Fatalf("unexpected modifiers: %+v", got.Header)
	}
	want := map[string]string{
		"REQUEST_METHOD": "GET",
		"PATH_INFO":      "/foo bar",
		"QUERY_STRING":   "a=1",
		"CONTENT_LENGTH": "",
		"CONTENT_TYPE":   "",
		"HTTP_HOST":      "example.com",
		"HTTP_X_TEST":    "v",
		"SERVER_NAME":    "127.0.0.1",
	}
	for k, v := range want {
		if got.Vars[k] != v {
			t.Fatalf("%s = %q want %q", k, got.Vars[k], v)
		}
	}
	if len(got.Body) != 0 {
		t.Fatalf("GET must not send body bytes, got %q", got.Body)
	}
}

func TestDoPostFormInjectsContentType(t *testing.T) {
	testlog.Start(t)
	srv := uwsgitest.Start(t, func(req uwsgitest.Request) uwsgitest.Reply {
		return jsonReply(http.StatusCreated, `{"echo":"`+string(req.Body)+`"}`)
	})
	c := newTestClient(t, srv.Addr(), nil)

	resp, err := c.Do(context.Background(), Options{
		Method: http.MethodPost,
		Path:   "/submit",
		Form:   map[string]string{"name": "a b", "id": "7"},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Fatalf("unexpected status %d", resp.Status)
	}

	got := srv.Requests()[0]
	body := "id=7&name=a%20b"
	if string(got.Body) != body {
		t.Fatalf("body = %q want %q", got.Body, body)
	}
	if got.Vars["CONTENT_LENGTH"] != "15" {
		t.Fatalf("CONTENT_LENGTH = %q", got.Vars["CONTENT_LENGTH"])
	}
	if got.Vars["CONTENT_TYPE"] != FormContentType {
		t.Fatalf("CONTENT_TYPE = %q", got.Vars["CONTENT_TYPE"])
	}
}

func TestDoKeepsExplicitContentType(t *testing.T) {
	srv := uwsgitest.Start(t, func(req uwsgitest.Request) uwsgitest.Reply {
		return jsonReply(http.StatusOK, `{}`)
	})
	c := newTestClient(t, srv.Addr(), nil)

	_, err := c.Do(context.Background(), Options{
		Method:  http.MethodPut,
		Path:    "/raw",
		Headers: map[string]string{"content-type": "application/json"},
		RawBody: []byte(`{"k":1}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	got := srv.Requests()[0]
	if got.Vars["CONTENT_TYPE"] != "application/json" || string(got.Body) != `{"k":1}` {
		t.Fatalf("unexpected request: %+v", got.Vars)
	}
}

func TestDoRejectsNon2xxWithResponse(t *testing.T) {
	srv := uwsgitest.Start(t, func(req uwsgitest.Request) uwsgitest.Reply {
		return uwsgitest.Reply{Status: http.StatusNotFound, Body: []byte("no such page")}
	})
	c := newTestClient(t, srv.Addr(), nil)

	resp, err := c.Do(context.Background(), Options{Method: "GET", Path: "/missing"})
	if resp != nil {
		t.Fatalf("expected nil response on rejection")
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Response.Status != 404 || se.Response.Raw != "no such page" {
		t.Fatalf("unexpected attached response: %+v", se.Response)
	}
	if data, ok := se.Response.Data.(map[string]any); !ok || len(data) != 0 || se.Response.DataErr == nil {
		t.Fatalf("expected empty-object fallback, got %#v", se.Response.Data)
	}
}

func TestDoDecodesGzip(t *testing.T) {
	const fixture = `{"greeting":"hello"}`
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(fixture))
	_ = zw.Close()
	compressed := buf.Bytes()

	srv := uwsgitest.Start(t, func(req uwsgitest.Request) uwsgitest.Reply {
		return uwsgitest.Reply{
			Status:  http.StatusOK,
			Headers: map[string]string{"Content-Encoding": "gzip"},
			Body:    compressed,
		}
	})
	c := newTestClient(t, srv.Addr(), nil)

	resp, err := c.Do(context.Background(), Options{Path: "/"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.Raw != fixture {
		t.Fatalf("raw = %q want %q", resp.Raw, fixture)
	}
	type greeting struct {
		Greeting string `json:"greeting"`
	}
	g, err := DecodeData[greeting](resp)
	if err != nil || g.Greeting != "hello" {
		t.Fatalf("decode data: %+v err=%v", g, err)
	}
}

func TestDoTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := uwsgitest.Start(t, func(req uwsgitest.Request) uwsgitest.Reply {
		<-release
		return jsonReply(http.StatusOK, `{}`)
	})
	t.Cleanup(func() { close(release) })
	c := newTestClient(t, srv.Addr(), func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	start := time.Now()
	resp, err := c.Do(context.Background(), Options{Path: "/slow"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if resp != nil {
		t.Fatalf("timeout must not return a partial response")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout took too long: %v", time.Since(start))
	}
}

func TestDoTimeoutWhileBodyStalls(t *testing.T) {
	release := make(chan struct{})
	srv := uwsgitest.StartConn(t, func(conn net.Conn, req uwsgitest.Request) {
		_, _ = io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nabc")
		<-release
	})
	t.Cleanup(func() { close(release) })
	c := newTestClient(t, srv.Addr(), func(cfg *Config) { cfg.Timeout = 100 * time.Millisecond })

	start := time.Now()
	resp, err := c.Do(context.Background(), Options{Path: "/stall"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if resp != nil {
		t.Fatalf("timeout must not return a partial response")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout during body read took %v", elapsed)
	}
}

func TestDoBodyCutShortIsTransportError(t *testing.T) {
	srv := uwsgitest.StartConn(t, func(conn net.Conn, req uwsgitest.Request) {
		_, _ = io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nabc")
	})
	c := newTestClient(t, srv.Addr(), nil)

	_, err := c.Do(context.Background(), Options{Path: "/cut"})
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "read_body" {
		t.Fatalf("expected read_body TransportError, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF underneath, got %v", err)
	}
	if errors.Is(err, protocol.ErrDecode) {
		t.Fatalf("connection loss must not be a decode error: %v", err)
	}
}

func TestDoCorruptGzipIsDecodeError(t *testing.T) {
	srv := uwsgitest.Start(t, func(req uwsgitest.Request) uwsgitest.Reply {
		return uwsgitest.Reply{
			Status:  http.StatusOK,
			Headers: map[string]string{"Content-Encoding": "gzip"},
			Body:    []byte("not gzip at all"),
		}
	})
	c := newTestClient(t, srv.Addr(), nil)

	_, err := c.Do(context.Background(), Options{Path: "/"})
	var te *TransportError
	if !errors.Is(err, protocol.ErrDecode) || errors.As(err, &te) {
		t.Fatalf("expected ErrDecode only, got %v", err)
	}
}

func TestDoTransportOpenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := newTestClient(t, addr, nil)
	_, err = c.Do(context.Background(), Options{Path: "/"})
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "open" {
		t.Fatalf("expected open TransportError, got %v", err)
	}
}

func TestDoCapacityErrorFromSmallBuffer(t *testing.T) {
	srv := uwsgitest.Start(t, func(req uwsgitest.Request) uwsgitest.Reply {
		return jsonReply(http.StatusOK, `{}`)
	})
	c := newTestClient(t, srv.Addr(), func(cfg *Config) { cfg.BufferSize = 64 })

	_, err := c.Do(context.Background(), Options{
		Path:    "/",
		Headers: map[string]string{"X-Long": strings.Repeat("z", 128)},
	})
	if !errors.Is(err, protocol.ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
}

func TestDoPassThroughAndModifiers(t *testing.T) {
	srv := uwsgitest.Start(t, func(req uwsgitest.Request) uwsgitest.Reply {
		return jsonReply(http.StatusOK, `[1,2]`)
	})
	c := newTestClient(t, srv.Addr(), func(cfg *Config) {
		cfg.Modifier1 = 0
		cfg.Modifier2 = 3
		cfg.Hostname = "app.internal"
		cfg.HeadersWithoutChanges = []string{"X-Trace-Id"}
	})

	resp, err := c.Do(context.Background(), Options{
		Path:    "/",
		Headers: map[string]string{"x-trace-id": "abc"},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if list, ok := resp.Data.([]any); !ok || len(list) != 2 {
		t.Fatalf("unexpected data: %#v", resp.Data)
	}
	got := srv.Requests()[0]
	if got.Header.Modifier1 != 0 || got.Header.Modifier2 != 3 {
		t.Fatalf("unexpected modifiers: %+v", got.Header)
	}
	if got.Vars["X-Trace-Id"] != "abc" || got.Vars["SERVER_NAME"] != "app.internal" {
		t.Fatalf("unexpected vars: %v", got.Vars)
	}
}

func TestNewRequiresTransport(t *testing.T) {
	if _, err := New(nil, DefaultConfig()); !errors.Is(err, ErrTransportNeeded) {
		t.Fatalf("expected ErrTransportNeeded, got %v", err)
	}
}
