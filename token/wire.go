package token

import (
	"encoding/binary"
	"fmt"

	"github.com/shopspring/decimal"
)

// writer accumulates the reference codec's wire bytes.
type writer struct {
	buf []byte
}

func (w *writer) bytes() []byte { return w.buf }

func (w *writer) byte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// str writes a length-prefixed UTF-8 string.
func (w *writer) str(s string) {
	w.uint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// reader consumes the reference codec's wire bytes, returning
// ErrIncomplete whenever the buffer runs out mid-field.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) rest() []byte { return r.buf[r.pos:] }

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, ErrIncomplete
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) rawN(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, ErrIncomplete
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.rawN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.rawN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) str() (string, error) {
	n, err := r.uint16()
	if err != nil {
		return "", err
	}
	b, err := r.rawN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Value wire tags, used inside Row/Params token bodies.
const (
	valNull  byte = 0
	valInt   byte = 1
	valFloat byte = 2
	valStr   byte = 3
	valBin   byte = 4
	valDec   byte = 5
)

// encodeValue serializes a decoded column/parameter value. Numeric,
// decimal, and money values round-trip as decimal.Decimal the same way
// the teacher's pkg/tds/types.go decodes NUMERIC/DECIMAL/MONEY wire
// bytes.
func encodeValue(w *writer, v interface{}) {
	switch val := v.(type) {
	case nil:
		w.byte(valNull)
	case int64:
		w.byte(valInt)
		w.uint32(uint32(val))
		w.uint32(uint32(val >> 32))
	case int:
		encodeValue(w, int64(val))
	case float64:
		w.byte(valFloat)
		bits := uint64FromFloat(val)
		w.uint32(uint32(bits))
		w.uint32(uint32(bits >> 32))
	case string:
		w.byte(valStr)
		w.uint32(uint32(len(val)))
		w.raw([]byte(val))
	case []byte:
		w.byte(valBin)
		w.uint32(uint32(len(val)))
		w.raw(val)
	case decimal.Decimal:
		w.byte(valDec)
		s := val.String()
		w.uint32(uint32(len(s)))
		w.raw([]byte(s))
	default:
		s := fmt.Sprintf("%v", val)
		w.byte(valStr)
		w.uint32(uint32(len(s)))
		w.raw([]byte(s))
	}
}

func decodeValue(r *reader) (interface{}, error) {
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case valNull:
		return nil, nil
	case valInt:
		lo, err := r.uint32()
		if err != nil {
			return nil, err
		}
		hi, err := r.uint32()
		if err != nil {
			return nil, err
		}
		return int64(uint64(hi)<<32 | uint64(lo)), nil
	case valFloat:
		lo, err := r.uint32()
		if err != nil {
			return nil, err
		}
		hi, err := r.uint32()
		if err != nil {
			return nil, err
		}
		return floatFromUint64(uint64(hi)<<32 | uint64(lo)), nil
	case valStr:
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		b, err := r.rawN(int(n))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case valBin:
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		b, err := r.rawN(int(n))
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case valDec:
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		b, err := r.rawN(int(n))
		if err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(string(b))
		if err != nil {
			return nil, fmt.Errorf("token: invalid decimal %q: %w", b, err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("token: unknown value tag 0x%02X", tag)
	}
}
