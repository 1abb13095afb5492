package body

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/danmuck/uwsgictl/internal/protocol"
	"github.com/danmuck/uwsgictl/internal/protocol/vars"
)

const (
	EncodingGzip    = "gzip"
	EncodingInflate = "inflate"

	chunkSize = 32 * 1024
)

// Strategy selects how a response body is turned into text.
type Strategy int

const (
	Passthrough Strategy = iota
	Gzip
	Inflate
)

func (s Strategy) String() string {
	switch s {
	case Gzip:
		return EncodingGzip
	case Inflate:
		return EncodingInflate
	default:
		return "identity"
	}
}

// Decompresses reports whether the strategy changes the byte count.
func (s Strategy) Decompresses() bool {
	return s != Passthrough
}

// SelectStrategy maps a content-encoding value to a Strategy.
func SelectStrategy(contentEncoding string) Strategy {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case EncodingGzip:
		return Gzip
	case EncodingInflate:
		return Inflate
	default:
		return Passthrough
	}
}

// Decode consumes r to EOF and returns the decoded body text.
//
// Compressed bodies always accumulate into a growable buffer. Only the
// passthrough path pre-sizes its buffer from content-length, since a declared
// length never matches decompressed output.
//
// Errors from r are returned as is. Only malformed compressed data is
// reported as protocol.ErrDecode.
func Decode(headers map[string]string, r io.Reader) (string, error) {
	encoding, _ := vars.HeaderValue(headers, "content-encoding")
	strategy := SelectStrategy(encoding)

	if !strategy.Decompresses() {
		if raw, ok := vars.HeaderValue(headers, "content-length"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n >= 0 {
				b, err := readSized(r, n)
				if err != nil {
					return "", err
				}
				return text(b), nil
			}
		}
		return readGrowable(r)
	}

	sr := &sourceReader{r: r}
	src, err := decompressor(strategy, sr)
	if err != nil {
		if sr.err != nil {
			return "", sr.err
		}
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %s: %v", protocol.ErrDecode, strategy, err)
	}
	defer src.Close()

	out, err := readGrowable(src)
	if err != nil {
		if sr.err != nil {
			return "", sr.err
		}
		return "", fmt.Errorf("%w: %s: %v", protocol.ErrDecode, strategy, err)
	}
	return out, nil
}

// sourceReader remembers the first non-EOF error of the compressed source.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && s.err == nil {
		s.err = err
	}
	return n, err
}

func decompressor(s Strategy, r io.Reader) (io.ReadCloser, error) {
	switch s {
	case Gzip:
		return gzip.NewReader(r)
	case Inflate:
		return flate.NewReader(r), nil
	default:
		return io.NopCloser(r), nil
	}
}

// readSized copies chunks into a buffer of the declared length at increasing offsets.
// Bytes past the declared length are appended rather than dropped; a short body is trimmed.
func readSized(r io.Reader, n int) ([]byte, error) {
	body := make([]byte, n)
	chunk := make([]byte, chunkSize)
	offset := 0
	for {
		k, err := r.Read(chunk)
		if k > 0 {
			if offset+k > len(body) {
				body = append(body[:offset], chunk[:k]...)
			} else {
				copy(body[offset:], chunk[:k])
			}
			offset += k
		}
		if errors.Is(err, io.EOF) {
			return body[:offset], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func readGrowable(r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.CopyBuffer(&buf, r, make([]byte, chunkSize)); err != nil {
		return "", err
	}
	return text(buf.Bytes()), nil
}

// text replaces every byte that does not start a valid UTF-8 sequence with U+FFFD.
func text(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(b[:size])
		}
		b = b[size:]
	}
	return sb.String()
}
