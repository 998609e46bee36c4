// Package token defines the logical TDS token vocabulary the connection
// core consumes and produces, plus a reference codec that turns those
// tokens into wire bytes and back.
//
// The byte-exact layout of any individual token is explicitly out of
// scope for the connection core (see the package doc on Codec): the core
// only depends on the Encoder/Decoder interfaces, and StdCodec exists so
// this module compiles and tests standalone without a real TDS server.
package token

import "fmt"

// SQLType identifies the wire type of a column or parameter value. Values
// are the real TDS type codes so golden test bytes are not invented.
type SQLType uint8

const (
	TypeNull      SQLType = 0x1F
	TypeInt1      SQLType = 0x30
	TypeBit       SQLType = 0x32
	TypeInt2      SQLType = 0x34
	TypeInt4      SQLType = 0x38
	TypeInt8      SQLType = 0x7F
	TypeFloat4    SQLType = 0x3B
	TypeFloat8    SQLType = 0x3E
	TypeMoney     SQLType = 0x3C
	TypeMoney4    SQLType = 0x7A
	TypeDecimalN  SQLType = 0x6A
	TypeNumericN  SQLType = 0x6C
	TypeDateTime  SQLType = 0x3D
	TypeVarChar   SQLType = 0x27
	TypeNVarChar  SQLType = 0xE7
	TypeVarBinary SQLType = 0x25
)

func (t SQLType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeInt1, TypeInt2, TypeInt4, TypeInt8:
		return "INT"
	case TypeFloat4, TypeFloat8:
		return "FLOAT"
	case TypeMoney, TypeMoney4:
		return "MONEY"
	case TypeDecimalN:
		return "DECIMAL"
	case TypeNumericN:
		return "NUMERIC"
	case TypeBit:
		return "BIT"
	case TypeDateTime:
		return "DATETIME"
	case TypeVarChar, TypeNVarChar:
		return "VARCHAR"
	case TypeVarBinary:
		return "VARBINARY"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}

// DoneStatus is the bitset carried by a done token. Bit positions follow
// TDS 5.0's DONE status byte (freetds' libtds), which differs from the
// TDS 7.x DONE/DONEPROC/DONEINPROC token-type split: TDS 5.0 signals the
// same distinction with status bits on a single DONE token.
type DoneStatus uint16

const (
	DoneFinal DoneStatus = 0x0000
	DoneMore  DoneStatus = 0x0001
	DoneError DoneStatus = 0x0002
	DoneTrans DoneStatus = 0x0004
	DoneProc  DoneStatus = 0x0008
	DoneCount DoneStatus = 0x0010
	DoneAttn  DoneStatus = 0x0020
	DoneEvent DoneStatus = 0x0040
)

func (d DoneStatus) Has(flag DoneStatus) bool { return d&flag != 0 }

func (d DoneStatus) String() string {
	names := []struct {
		flag DoneStatus
		name string
	}{
		{DoneMore, "more"}, {DoneError, "error"}, {DoneTrans, "trans"},
		{DoneProc, "proc"}, {DoneCount, "count"}, {DoneAttn, "attn"}, {DoneEvent, "event"},
	}
	s := ""
	for _, n := range names {
		if d.Has(n.flag) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "final"
	}
	return s
}

// Kind discriminates the Token variants.
type Kind int

const (
	KindLoginAck Kind = iota
	KindCapability
	KindEnvChange
	KindDone
	KindRowFormat
	KindRow
	KindParams
	KindParamsFormat
	KindReturnStatus
	KindOrderBy
	KindMessage
	KindDynamicAck
	KindOther
	// Request-direction kinds: encoded by the client and part of the same
	// Token vocabulary so encode/decode stay symmetric for framing tests.
	// StdCodec decodes them in either direction.
	KindLogin
	KindLogout
	KindLanguage
	KindDynamic
)

// Token is implemented by every concrete token variant.
type Token interface {
	Kind() Kind
}

// LoginSubState is the sub-state a LOGINACK token asks the connection to
// move to.
type LoginSubState int

const (
	SubStateConnected LoginSubState = iota
	// SubStateAuthNegotiate is recognized but deliberately left
	// unimplemented (see the connection package's Connect).
	SubStateAuthNegotiate
)

// ServerIdentity names the server that sent a LOGINACK.
type ServerIdentity struct {
	Name    string
	Version [4]byte
}

type LoginAck struct {
	SubState LoginSubState
	TDSVer   uint32
	Server   ServerIdentity
}

func (LoginAck) Kind() Kind { return KindLoginAck }

type Capability struct {
	Requested []byte
	Responded []byte
}

func (Capability) Kind() Kind { return KindCapability }

// EnvChangeEntry is one (key, new, old) triple from an ENVCHANGE token.
type EnvChangeEntry struct {
	Key string
	New string
	Old string
}

type EnvChange struct {
	Changes []EnvChangeEntry
}

func (EnvChange) Kind() Kind { return KindEnvChange }

type Done struct {
	Flags DoneStatus
	Txn   uint16
	Count int32
}

func (Done) Kind() Kind { return KindDone }

// ColumnFormat describes one column of a ROWFORMAT token.
type ColumnFormat struct {
	LabelName  string
	ColumnName string
	Type       SQLType
}

type RowFormat struct {
	Formats []ColumnFormat
}

func (RowFormat) Kind() Kind { return KindRowFormat }

type Row struct {
	Values []interface{}
}

func (Row) Kind() Kind { return KindRow }

type Params struct {
	Values []interface{}
}

func (Params) Kind() Kind { return KindParams }

// ParamsFormat is kept verbatim (Raw) so it can be re-emitted unmodified
// ahead of a Params token on execute.
type ParamsFormat struct {
	Raw     []byte
	Formats []ColumnFormat
}

func (ParamsFormat) Kind() Kind { return KindParamsFormat }

type ReturnStatus struct {
	Value int32
}

func (ReturnStatus) Kind() Kind { return KindReturnStatus }

type OrderBy struct {
	Columns []int
}

func (OrderBy) Kind() Kind { return KindOrderBy }

type Message struct {
	Class  uint8
	Number int32
	Text   string
}

func (Message) Kind() Kind { return KindMessage }

// DynamicOp identifies whether a DYNAMIC token is a prepare or execute
// request/acknowledgement.
type DynamicOp uint8

const (
	DynamicPrepare DynamicOp = 1
	DynamicExecute DynamicOp = 2
	DynamicAckOp   DynamicOp = 3
)

// DynamicFlags for the DYNAMIC token.
const (
	DynamicNoFlags DynamicOp = 0
	DynamicHasArgs DynamicOp = 1
)

type DynamicAck struct {
	Status uint8
	ID     string
}

func (DynamicAck) Kind() Kind { return KindDynamicAck }

// Other holds any token kind this core doesn't interpret, kept verbatim
// so it can be discarded without breaking the stream.
type Other struct {
	TypeByte byte
	Raw      []byte
}

func (Other) Kind() Kind { return KindOther }

// Login is the client's LOGIN7-equivalent token, carrying the ordered
// environment the server will acknowledge or override via EnvChange.
type Login struct {
	Env []EnvChangeEntry
}

func (Login) Kind() Kind { return KindLogin }

// Logout is the client's empty logout token.
type Logout struct{}

func (Logout) Kind() Kind { return KindLogout }

// Language carries a SQL batch in the wire character encoding; the core
// must not re-encode text the codec has already converted.
type Language struct {
	Text []byte
}

func (Language) Kind() Kind { return KindLanguage }

// Dynamic is the client's DYNAMIC token for sp_prepare/sp_execute-style
// requests.
type Dynamic struct {
	Op     DynamicOp
	Flags  DynamicOp
	StmtID string
	Body   string
}

func (Dynamic) Kind() Kind { return KindDynamic }
