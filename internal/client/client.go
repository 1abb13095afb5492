package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/uwsgictl/internal/observability"
	"github.com/danmuck/uwsgictl/internal/protocol"
	"github.com/danmuck/uwsgictl/internal/protocol/body"
	"github.com/danmuck/uwsgictl/internal/protocol/packet"
	"github.com/danmuck/uwsgictl/internal/protocol/vars"
	"github.com/danmuck/uwsgictl/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const FormContentType = "application/x-www-form-urlencoded"

// Options describes one request.
type Options struct {
	Method  string
	Path    string
	Headers map[string]string
	// Form is sent as key=value pairs. A non-nil Form counts as a body even when empty.
	Form map[string]string
	// RawBody is sent verbatim and takes precedence over Form.
	RawBody []byte
	// Timeout overrides Config.Timeout when positive.
	Timeout time.Duration
}

// Response is the decoded reply. It is not modified after Do returns.
type Response struct {
	Status     int               `json:"status" yaml:"status"`
	StatusText string            `json:"statusText" yaml:"statusText"`
	Headers    map[string]string `json:"headers" yaml:"headers"`
	Raw        string            `json:"raw" yaml:"raw"`
	// Data is Raw parsed as JSON, or an empty object when Raw is not JSON.
	Data any `json:"data" yaml:"data"`
	// DataErr records why Data fell back to an empty object.
	DataErr error `json:"-" yaml:"-"`
	// Values keeps every value per lower-cased header name, e.g. repeated set-cookie.
	Values map[string][]string `json:"-" yaml:"-"`
}

// OK reports whether Status is in [200,300).
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client translates HTTP-style requests into uwsgi packets.
type Client struct {
	cfg       Config
	transport transport.Transport
	log       zerolog.Logger
}

func New(t transport.Transport, cfg Config) (*Client, error) {
	if t == nil {
		return nil, ErrTransportNeeded
	}
	cfg = cfg.WithDefaults()
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Client{
		cfg:       cfg,
		transport: t,
		log:       logger.With().Str("backend", cfg.Name).Logger(),
	}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

// Do sends one request and waits for the decoded response.
// Responses outside [200,300) are returned as *StatusError.
func (c *Client) Do(ctx context.Context, opts Options) (*Response, error) {
	start := time.Now()
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}

	timeout := c.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload, hasBody := requestBody(method, opts)
	headers := requestHeaders(opts.Headers, hasBody)
	meta := vars.Request{
		Method:      method,
		RawPath:     opts.Path,
		Headers:     headers,
		BodyLength:  len(payload),
		PassThrough: c.cfg.HeadersWithoutChanges,
	}

	resp, err := c.exchange(ctx, meta, payload, hasBody)
	c.record(method, opts.Path, resp, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{Response: resp}
	}
	return resp, nil
}

type result struct {
	resp *Response
	err  error
}

func (c *Client) exchange(ctx context.Context, meta vars.Request, payload []byte, hasBody bool) (*Response, error) {
	stream, err := c.transport.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctxError(ctx)
		}
		return nil, &TransportError{Op: "open", Err: err}
	}
	defer stream.Close()

	done := make(chan result, 1)
	go func() {
		resp, err := c.roundTrip(stream, meta, payload, hasBody)
		done <- result{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		_ = stream.Close()
		<-done
		return nil, ctxError(ctx)
	}
}

func (c *Client) roundTrip(stream transport.Stream, meta vars.Request, payload []byte, hasBody bool) (*Response, error) {
	w := newRequestWriter(stream, func() ([]byte, error) {
		return c.compose(meta)
	})
	if hasBody {
		if err := w.Write(payload); err != nil {
			return nil, err
		}
	}
	if err := w.End(); err != nil {
		return nil, err
	}
	observability.ObservePacketBytes(c.cfg.Name, w.packetLen)

	raw, err := stream.ReadResponse()
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	text, err := body.Decode(raw.Headers, raw.Body)
	if err != nil {
		if errors.Is(err, protocol.ErrDecode) {
			return nil, err
		}
		return nil, &TransportError{Op: "read_body", Err: err}
	}
	resp := &Response{
		Status:     raw.StatusCode,
		StatusText: raw.StatusMessage,
		Headers:    raw.Headers,
		Values:     raw.Values,
		Raw:        text,
	}
	resp.Data, resp.DataErr = parseData(text)
	return resp, nil
}

// compose builds the packet for meta.
func (c *Client) compose(meta vars.Request) ([]byte, error) {
	v := vars.Encode(vars.Server{
		Hostname: c.cfg.Hostname,
		Host:     c.cfg.Host,
		Port:     c.cfg.Port,
	}, meta)
	pkt, err := packet.Build(c.cfg.Modifier1, c.cfg.Modifier2, c.cfg.BufferSize, v)
	if err != nil {
		return nil, err
	}
	c.log.Debug().
		Str("method", meta.Method).
		Str("uri", meta.RawPath).
		Int("vars", v.Len()).
		Int("packet_bytes", len(pkt)).
		Int("body_bytes", meta.BodyLength).
		Msg("uwsgi_packet")
	return pkt, nil
}

func (c *Client) record(method, path string, resp *Response, err error, d time.Duration) {
	status := 0
	if resp != nil {
		status = resp.Status
	}
	outcome := outcomeOf(resp, err)
	observability.RecordUwsgiRequest(c.cfg.Name, method, status, outcome, d)

	event := c.log.Debug()
	if err != nil {
		event = c.log.Warn().Err(err)
	}
	event.
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Str("outcome", outcome).
		Dur("duration", d).
		Msg("uwsgi_request")
}

func outcomeOf(resp *Response, err error) string {
	var te *TransportError
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &te):
		return "transport_error"
	case err != nil:
		return "error"
	case !resp.OK():
		return "status_error"
	default:
		return "ok"
	}
}

func ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}

// requestBody returns the serialized body and whether one is sent.
// GET and DELETE never carry a body.
func requestBody(method string, opts Options) ([]byte, bool) {
	if method == http.MethodGet || method == http.MethodDelete {
		return nil, false
	}
	switch {
	case opts.RawBody != nil:
		return opts.RawBody, true
	case opts.Form != nil:
		return []byte(body.EncodeForm(opts.Form)), true
	default:
		return nil, false
	}
}

func requestHeaders(in map[string]string, hasBody bool) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	if hasBody {
		if _, ok := vars.HeaderValue(out, "content-type"); !ok {
			out["Content-Type"] = FormContentType
		}
	}
	return out
}

// parseData parses raw as JSON. Failure is lossy by contract: the result is an
// empty object and the parse error is returned for inspection only.
func parseData(raw string) (any, error) {
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return map[string]any{}, err
	}
	return data, nil
}

// DecodeData unmarshals the raw body of resp into T.
func DecodeData[T any](resp *Response) (T, error) {
	var out T
	if resp == nil {
		return out, errors.New("client: nil response")
	}
	err := json.Unmarshal([]byte(resp.Raw), &out)
	return out, err
}
