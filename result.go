package sybtds

import "github.com/ha1tch/sybtds/token"

// Result is one entry of a reply's result list. There are three
// variants, driven by a done segment's status flags.
type Result interface {
	isResult()
}

// AffectedRows is emitted for a segment whose done flags carry Count but
// whose buffer held no RowFormat token.
type AffectedRows struct {
	N int64
}

func (AffectedRows) isResult() {}

// ResultSet is emitted for a segment whose done flags carry Count and
// whose buffer held a RowFormat token.
type ResultSet struct {
	Columns []string
	Meta    []token.OrderBy
	Rows    [][]interface{}
}

func (ResultSet) isResult() {}

// ProcedureResult is emitted for a segment whose done flags carry Proc.
type ProcedureResult struct {
	ReturnStatus int32
	OutParams    []interface{}
}

func (ProcedureResult) isResult() {}
