package packet

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/danmuck/uwsgictl/internal/protocol"
	"github.com/danmuck/uwsgictl/internal/protocol/vars"
)

const (
	HeaderLen         = 4
	MaxPayloadLen     = 0xFFFF
	DefaultBufferSize = 16384
	DefaultModifier1  = 5
	DefaultModifier2  = 0

	lenPrefix = 2
)

// Header is the fixed 4-byte packet header.
type Header struct {
	Modifier1  uint8
	PayloadLen uint16
	Modifier2  uint8
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = h.Modifier1
	binary.LittleEndian.PutUint16(buf[1:3], h.PayloadLen)
	buf[3] = h.Modifier2
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("%w: header length %d", protocol.ErrInvalidLength, len(b))
	}
	return Header{
		Modifier1:  b[0],
		PayloadLen: binary.LittleEndian.Uint16(b[1:3]),
		Modifier2:  b[3],
	}, nil
}

// PutHeader writes the header for a variable block of length n into buf[0:4].
func PutHeader(buf []byte, modifier1, modifier2 uint8, n int) error {
	if len(buf) < HeaderLen {
		return fmt.Errorf("%w: buffer holds %d bytes, header needs %d", protocol.ErrCapacity, len(buf), HeaderLen)
	}
	if n < 0 {
		return fmt.Errorf("%w: negative payload length %d", protocol.ErrInvalidLength, n)
	}
	if n > MaxPayloadLen {
		return fmt.Errorf("%w: %d bytes", protocol.ErrPayloadTooLarge, n)
	}
	buf[0] = modifier1
	binary.LittleEndian.PutUint16(buf[1:3], uint16(n))
	buf[3] = modifier2
	return nil
}

// WriteVars serializes v into buf starting after the header and returns the end offset.
// Each record is a little-endian uint16 name length, the name, a uint16 value length and the value.
func WriteVars(buf []byte, v *vars.Vars) (int, error) {
	if len(buf) < HeaderLen {
		return 0, fmt.Errorf("%w: buffer holds %d bytes, header needs %d", protocol.ErrCapacity, len(buf), HeaderLen)
	}
	offset := HeaderLen
	for _, kv := range v.List() {
		var err error
		if offset, err = writeString(buf, offset, kv.Name); err != nil {
			return 0, fmt.Errorf("var %q name: %w", kv.Name, err)
		}
		if offset, err = writeString(buf, offset, kv.Value); err != nil {
			return 0, fmt.Errorf("var %q value: %w", kv.Name, err)
		}
	}
	return offset, nil
}

func writeString(buf []byte, offset int, s string) (int, error) {
	if len(s) > MaxPayloadLen {
		return 0, fmt.Errorf("%w: %d bytes does not fit a uint16 prefix", protocol.ErrInvalidLength, len(s))
	}
	end := offset + lenPrefix + len(s)
	if end > len(buf) {
		return 0, fmt.Errorf("%w: need %d bytes, capacity %d", protocol.ErrCapacity, end, len(buf))
	}
	binary.LittleEndian.PutUint16(buf[offset:offset+lenPrefix], uint16(len(s)))
	copy(buf[offset+lenPrefix:end], s)
	return end, nil
}

// Build encodes v into a complete request packet using a buffer of bufferSize bytes.
func Build(modifier1, modifier2 uint8, bufferSize int, v *vars.Vars) ([]byte, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	buf := make([]byte, bufferSize)
	end, err := WriteVars(buf, v)
	if err != nil {
		return nil, err
	}
	if err := PutHeader(buf, modifier1, modifier2, end-HeaderLen); err != nil {
		return nil, err
	}
	return buf[:end], nil
}

// ReadPacket reads one header and variable block from r.
func ReadPacket(r io.Reader) (Header, *vars.Vars, error) {
	head := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, head); err != nil {
		return Header{}, nil, protocol.ErrTruncated
	}
	h, err := DecodeHeader(head)
	if err != nil {
		return Header{}, nil, err
	}
	block := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, block); err != nil {
		return Header{}, nil, protocol.ErrTruncated
	}
	v, err := DecodeVars(block)
	if err != nil {
		return Header{}, nil, err
	}
	return h, v, nil
}

// DecodeVars parses a variable block.
func DecodeVars(block []byte) (*vars.Vars, error) {
	v := vars.New()
	for offset := 0; offset < len(block); {
		name, next, err := readString(block, offset)
		if err != nil {
			return nil, err
		}
		value, end, err := readString(block, next)
		if err != nil {
			return nil, err
		}
		v.Set(name, value)
		offset = end
	}
	return v, nil
}

func readString(block []byte, offset int) (string, int, error) {
	if len(block)-offset < lenPrefix {
		return "", 0, protocol.ErrTruncated
	}
	n := int(binary.LittleEndian.Uint16(block[offset : offset+lenPrefix]))
	offset += lenPrefix
	if n > len(block)-offset {
		return "", 0, protocol.ErrInvalidLength
	}
	return string(block[offset : offset+n]), offset + n, nil
}
