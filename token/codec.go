package token

import (
	"encoding/binary"
	"fmt"
)

// PacketKind identifies which TDS packet type a framed message should
// carry, mirroring the type byte in the TDS packet header.
type PacketKind uint8

const (
	// PacketLogin carries a LOGIN7-equivalent token list. The byte value
	// matches the real LOGIN7 packet type used by the wire protocol.
	PacketLogin PacketKind = 16
	// PacketQuery carries a language/RPC token list.
	PacketQuery PacketKind = 1
	// packetReply is the server->client direction. Nothing in this module
	// frames with it; replies in the tests are framed as PacketQuery.
	packetReply PacketKind = 4
)

// Packet framing constants, taken from the real TDS header layout so
// packet sizes and offsets behave like a genuine server's.
const (
	HeaderSize        = 8
	DefaultPacketSize = 4096
	MinPacketSize     = 512
	MaxPacketSize     = 32767

	statusNormal byte = 0x00
	statusEOM    byte = 0x01
)

// ErrIncomplete signals that the supplied buffer does not yet hold a
// complete packet (or token); the caller should read more bytes from the
// socket and retry.
var ErrIncomplete = fmt.Errorf("token: incomplete")

// PacketResult is the outcome of successfully extracting one packet from
// a buffer.
type PacketResult struct {
	Last      bool
	Body      []byte
	Remainder []byte
}

// Encoder turns a logical token list into wire bytes and frames a byte
// stream into packets of a given size.
type Encoder interface {
	EncodeTokens(tokens []Token) ([]byte, error)
	EncodePackets(body []byte, kind PacketKind, packetSize int) ([]byte, error)
}

// Decoder extracts one packet, then one token at a time, from a buffer.
type Decoder interface {
	DecodePacket(buf []byte) (PacketResult, error)
	DecodeToken(buf []byte, server bool) (Token, []byte, error)
}

// Codec is the full external collaborator the connection core depends
// on. Its wire format is explicitly out of scope for this module (see
// the package doc); StdCodec is a reference implementation good enough
// to drive this module's own tests without a real TDS server.
type Codec interface {
	Encoder
	Decoder
}

// StdCodec is the reference Codec implementation.
type StdCodec struct{}

var _ Codec = StdCodec{}

// EncodePackets splits body into one or more TDS packets of at most
// packetSize bytes each (header included), setting the EOM status flag
// on the final packet, and concatenates them into a single byte stream
// ready for one socket write.
func (StdCodec) EncodePackets(body []byte, kind PacketKind, packetSize int) ([]byte, error) {
	if packetSize < HeaderSize+1 {
		return nil, fmt.Errorf("token: packet size %d too small", packetSize)
	}
	maxPayload := packetSize - HeaderSize
	out := make([]byte, 0, len(body)+HeaderSize)
	remaining := body
	for {
		isLast := len(remaining) <= maxPayload
		var chunk []byte
		if isLast {
			chunk = remaining
		} else {
			chunk = remaining[:maxPayload]
			remaining = remaining[maxPayload:]
		}

		status := statusNormal
		if isLast {
			status = statusEOM
		}

		var hdr [HeaderSize]byte
		hdr[0] = byte(kind)
		hdr[1] = status
		binary.BigEndian.PutUint16(hdr[2:4], uint16(HeaderSize+len(chunk)))
		// SPID/PacketID/Window are not meaningful for a client-originated
		// stream in this core; left zero.
		out = append(out, hdr[:]...)
		out = append(out, chunk...)

		if isLast {
			break
		}
		if len(remaining) == 0 {
			break
		}
	}
	return out, nil
}

// DecodePacket extracts one packet from buf. If buf does not yet contain
// a full packet it returns ErrIncomplete without consuming anything.
func (StdCodec) DecodePacket(buf []byte) (PacketResult, error) {
	if len(buf) < HeaderSize {
		return PacketResult{}, ErrIncomplete
	}
	length := binary.BigEndian.Uint16(buf[2:4])
	if length < HeaderSize {
		return PacketResult{}, fmt.Errorf("token: invalid packet length %d", length)
	}
	if len(buf) < int(length) {
		return PacketResult{}, ErrIncomplete
	}
	status := buf[1]
	return PacketResult{
		Last:      status&statusEOM != 0,
		Body:      buf[HeaderSize:length],
		Remainder: buf[length:],
	}, nil
}

// Token wire tags. Values are arbitrary but stable for this reference
// codec; a real TDS decoder would instead dispatch on the official
// per-token type byte values the teacher's tds/token.go enumerates
// (TokenDone, TokenLoginAck, TokenEnvChange, ...).
const (
	tagLoginAck      byte = 0x01
	tagCapability    byte = 0x02
	tagEnvChange     byte = 0x03
	tagDone          byte = 0x04
	tagRowFormat     byte = 0x05
	tagRow           byte = 0x06
	tagParams        byte = 0x07
	tagParamsFormat  byte = 0x08
	tagReturnStatus  byte = 0x09
	tagOrderBy       byte = 0x0A
	tagMessage       byte = 0x0B
	tagDynamicAck    byte = 0x0C
	tagLogin         byte = 0x0D
	tagLogout        byte = 0x0E
	tagLanguage      byte = 0x0F
	tagDynamic       byte = 0x10
	tagOtherBase     byte = 0x80 // >= tagOtherBase: opaque, len-prefixed
)

// EncodeTokens serializes tokens into the reference wire format: one
// tag byte per token followed by a type-specific, length-prefixed body.
func (StdCodec) EncodeTokens(tokens []Token) ([]byte, error) {
	var w writer
	for _, t := range tokens {
		if err := encodeOne(&w, t); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

func encodeOne(w *writer, t Token) error {
	switch v := t.(type) {
	case Login:
		w.byte(tagLogin)
		w.uint16(uint16(len(v.Env)))
		for _, e := range v.Env {
			w.str(e.Key)
			w.str(e.New)
		}
	case Logout:
		w.byte(tagLogout)
	case Language:
		w.byte(tagLanguage)
		w.uint32(uint32(len(v.Text)))
		w.raw(v.Text)
	case Dynamic:
		w.byte(tagDynamic)
		w.byte(byte(v.Op))
		w.byte(byte(v.Flags))
		w.str(v.StmtID)
		w.str(v.Body)
	case Params:
		w.byte(tagParams)
		w.uint16(uint16(len(v.Values)))
		for _, val := range v.Values {
			encodeValue(w, val)
		}
	case ParamsFormat:
		w.byte(tagParamsFormat)
		w.uint32(uint32(len(v.Raw)))
		w.raw(v.Raw)
	case LoginAck:
		w.byte(tagLoginAck)
		w.byte(byte(v.SubState))
		w.uint32(v.TDSVer)
		w.str(v.Server.Name)
		w.raw(v.Server.Version[:])
	case Capability:
		w.byte(tagCapability)
		w.uint16(uint16(len(v.Requested)))
		w.raw(v.Requested)
		w.uint16(uint16(len(v.Responded)))
		w.raw(v.Responded)
	case EnvChange:
		w.byte(tagEnvChange)
		w.uint16(uint16(len(v.Changes)))
		for _, c := range v.Changes {
			w.str(c.Key)
			w.str(c.New)
			w.str(c.Old)
		}
	case Done:
		w.byte(tagDone)
		w.uint16(uint16(v.Flags))
		w.uint16(v.Txn)
		w.uint32(uint32(v.Count))
	case RowFormat:
		w.byte(tagRowFormat)
		w.uint16(uint16(len(v.Formats)))
		for _, f := range v.Formats {
			w.str(f.LabelName)
			w.str(f.ColumnName)
			w.byte(byte(f.Type))
		}
	case Row:
		w.byte(tagRow)
		w.uint16(uint16(len(v.Values)))
		for _, val := range v.Values {
			encodeValue(w, val)
		}
	case ReturnStatus:
		w.byte(tagReturnStatus)
		w.uint32(uint32(v.Value))
	case OrderBy:
		w.byte(tagOrderBy)
		w.uint16(uint16(len(v.Columns)))
		for _, c := range v.Columns {
			w.uint32(uint32(c))
		}
	case Message:
		w.byte(tagMessage)
		w.byte(v.Class)
		w.uint32(uint32(v.Number))
		w.str(v.Text)
	case DynamicAck:
		w.byte(tagDynamicAck)
		w.byte(v.Status)
		w.str(v.ID)
	case Other:
		w.byte(tagOtherBase | (v.TypeByte & 0x7F))
		w.uint32(uint32(len(v.Raw)))
		w.raw(v.Raw)
	default:
		return fmt.Errorf("token: unknown token type %T", t)
	}
	return nil
}

// DecodeToken reads one token from buf, returning the token and the
// unconsumed remainder. server selects which direction's vocabulary to
// expect; the reference codec accepts either since the tag byte alone
// is enough to disambiguate, but real decoders usually differ per
// direction the way the spec's external codec does.
func (StdCodec) DecodeToken(buf []byte, server bool) (Token, []byte, error) {
	_ = server
	if len(buf) == 0 {
		return nil, nil, ErrIncomplete
	}
	r := &reader{buf: buf}
	tag, err := r.byte()
	if err != nil {
		return nil, nil, err
	}

	switch {
	case tag == tagLogin:
		n, err := r.uint16()
		if err != nil {
			return nil, nil, err
		}
		env := make([]EnvChangeEntry, n)
		for i := range env {
			k, err := r.str()
			if err != nil {
				return nil, nil, err
			}
			v, err := r.str()
			if err != nil {
				return nil, nil, err
			}
			env[i] = EnvChangeEntry{Key: k, New: v}
		}
		return Login{Env: env}, r.rest(), nil
	case tag == tagLogout:
		return Logout{}, r.rest(), nil
	case tag == tagLanguage:
		n, err := r.uint32()
		if err != nil {
			return nil, nil, err
		}
		b, err := r.rawN(int(n))
		if err != nil {
			return nil, nil, err
		}
		return Language{Text: b}, r.rest(), nil
	case tag == tagDynamic:
		op, err := r.byte()
		if err != nil {
			return nil, nil, err
		}
		flags, err := r.byte()
		if err != nil {
			return nil, nil, err
		}
		id, err := r.str()
		if err != nil {
			return nil, nil, err
		}
		body, err := r.str()
		if err != nil {
			return nil, nil, err
		}
		return Dynamic{Op: DynamicOp(op), Flags: DynamicOp(flags), StmtID: id, Body: body}, r.rest(), nil
	case tag == tagParams:
		n, err := r.uint16()
		if err != nil {
			return nil, nil, err
		}
		vals := make([]interface{}, n)
		for i := range vals {
			v, err := decodeValue(r)
			if err != nil {
				return nil, nil, err
			}
			vals[i] = v
		}
		return Params{Values: vals}, r.rest(), nil
	case tag == tagParamsFormat:
		n, err := r.uint32()
		if err != nil {
			return nil, nil, err
		}
		raw, err := r.rawN(int(n))
		if err != nil {
			return nil, nil, err
		}
		return ParamsFormat{Raw: raw}, r.rest(), nil
	case tag == tagLoginAck:
		sub, err := r.byte()
		if err != nil {
			return nil, nil, err
		}
		ver, err := r.uint32()
		if err != nil {
			return nil, nil, err
		}
		name, err := r.str()
		if err != nil {
			return nil, nil, err
		}
		verBytes, err := r.rawN(4)
		if err != nil {
			return nil, nil, err
		}
		var sv [4]byte
		copy(sv[:], verBytes)
		return LoginAck{SubState: LoginSubState(sub), TDSVer: ver, Server: ServerIdentity{Name: name, Version: sv}}, r.rest(), nil
	case tag == tagCapability:
		n1, err := r.uint16()
		if err != nil {
			return nil, nil, err
		}
		req, err := r.rawN(int(n1))
		if err != nil {
			return nil, nil, err
		}
		n2, err := r.uint16()
		if err != nil {
			return nil, nil, err
		}
		resp, err := r.rawN(int(n2))
		if err != nil {
			return nil, nil, err
		}
		return Capability{Requested: req, Responded: resp}, r.rest(), nil
	case tag == tagEnvChange:
		n, err := r.uint16()
		if err != nil {
			return nil, nil, err
		}
		changes := make([]EnvChangeEntry, n)
		for i := range changes {
			k, err := r.str()
			if err != nil {
				return nil, nil, err
			}
			nv, err := r.str()
			if err != nil {
				return nil, nil, err
			}
			ov, err := r.str()
			if err != nil {
				return nil, nil, err
			}
			changes[i] = EnvChangeEntry{Key: k, New: nv, Old: ov}
		}
		return EnvChange{Changes: changes}, r.rest(), nil
	case tag == tagDone:
		flags, err := r.uint16()
		if err != nil {
			return nil, nil, err
		}
		txn, err := r.uint16()
		if err != nil {
			return nil, nil, err
		}
		count, err := r.uint32()
		if err != nil {
			return nil, nil, err
		}
		return Done{Flags: DoneStatus(flags), Txn: txn, Count: int32(count)}, r.rest(), nil
	case tag == tagRowFormat:
		n, err := r.uint16()
		if err != nil {
			return nil, nil, err
		}
		formats := make([]ColumnFormat, n)
		for i := range formats {
			label, err := r.str()
			if err != nil {
				return nil, nil, err
			}
			col, err := r.str()
			if err != nil {
				return nil, nil, err
			}
			typ, err := r.byte()
			if err != nil {
				return nil, nil, err
			}
			formats[i] = ColumnFormat{LabelName: label, ColumnName: col, Type: SQLType(typ)}
		}
		return RowFormat{Formats: formats}, r.rest(), nil
	case tag == tagRow:
		n, err := r.uint16()
		if err != nil {
			return nil, nil, err
		}
		vals := make([]interface{}, n)
		for i := range vals {
			v, err := decodeValue(r)
			if err != nil {
				return nil, nil, err
			}
			vals[i] = v
		}
		return Row{Values: vals}, r.rest(), nil
	case tag == tagReturnStatus:
		v, err := r.uint32()
		if err != nil {
			return nil, nil, err
		}
		return ReturnStatus{Value: int32(v)}, r.rest(), nil
	case tag == tagOrderBy:
		n, err := r.uint16()
		if err != nil {
			return nil, nil, err
		}
		cols := make([]int, n)
		for i := range cols {
			v, err := r.uint32()
			if err != nil {
				return nil, nil, err
			}
			cols[i] = int(v)
		}
		return OrderBy{Columns: cols}, r.rest(), nil
	case tag == tagMessage:
		class, err := r.byte()
		if err != nil {
			return nil, nil, err
		}
		num, err := r.uint32()
		if err != nil {
			return nil, nil, err
		}
		text, err := r.str()
		if err != nil {
			return nil, nil, err
		}
		return Message{Class: class, Number: int32(num), Text: text}, r.rest(), nil
	case tag == tagDynamicAck:
		status, err := r.byte()
		if err != nil {
			return nil, nil, err
		}
		id, err := r.str()
		if err != nil {
			return nil, nil, err
		}
		return DynamicAck{Status: status, ID: id}, r.rest(), nil
	case tag&tagOtherBase != 0:
		n, err := r.uint32()
		if err != nil {
			return nil, nil, err
		}
		raw, err := r.rawN(int(n))
		if err != nil {
			return nil, nil, err
		}
		return Other{TypeByte: tag &^ tagOtherBase, Raw: raw}, r.rest(), nil
	default:
		return nil, nil, fmt.Errorf("token: unknown tag 0x%02X", tag)
	}
}
