package sybtds

import (
	"github.com/ha1tch/sybtds/tdserr"
	"github.com/ha1tch/sybtds/token"
)

// assembleSegment consults a Done token's flags, checked in a fixed
// priority order, to decide whether the segment is still open ("more")
// and, if closed,
// what Result it produces; resultsSoFar is the running list the whole
// reply accumulates, needed because a "proc" segment must drop any
// AffectedRows entries a preceding segment in the same reply produced.
func assembleSegment(pending []token.Token, done token.Done, resultsSoFar []Result) (results []Result, more bool, err error) {
	if done.Flags.Has(token.DoneMore) {
		return resultsSoFar, true, nil
	}

	var produced Result
	hasProduced := false

	if done.Flags.Has(token.DoneCount) {
		produced = buildCountResult(pending, done)
		hasProduced = true
	}

	if done.Flags.Has(token.DoneProc) {
		resultsSoFar = dropAffectedRows(resultsSoFar)
		produced = buildProcResult(pending)
		hasProduced = true
	}

	// event, attn, trans flags contribute nothing to the result.

	if done.Flags.Has(token.DoneError) {
		msg := findMessage(pending)
		return nil, false, tdserr.New(tdserr.Remote, msg).Err()
	}

	if !hasProduced {
		produced = AffectedRows{N: int64(done.Count)}
	}

	return append(resultsSoFar, produced), false, nil
}

func buildCountResult(pending []token.Token, done token.Done) Result {
	rf, ok := firstRowFormat(pending)
	if !ok {
		return AffectedRows{N: int64(done.Count)}
	}

	columns := make([]string, len(rf.Formats))
	for i, f := range rf.Formats {
		if f.LabelName != "" {
			columns[i] = f.LabelName
		} else {
			columns[i] = f.ColumnName
		}
	}

	var meta []token.OrderBy
	for _, t := range pending {
		if ob, ok := t.(token.OrderBy); ok {
			meta = append(meta, ob)
			break
		}
	}

	var rows [][]interface{}
	for _, t := range pending {
		if row, ok := t.(token.Row); ok {
			if int64(len(rows)) >= int64(done.Count) {
				break
			}
			rows = append(rows, row.Values)
		}
	}

	return ResultSet{Columns: columns, Meta: meta, Rows: rows}
}

func buildProcResult(pending []token.Token) Result {
	var status int32
	for _, t := range pending {
		if rs, ok := t.(token.ReturnStatus); ok {
			status = rs.Value
			break
		}
	}
	var out []interface{}
	for _, t := range pending {
		if p, ok := t.(token.Params); ok {
			out = p.Values
			break
		}
	}
	return ProcedureResult{ReturnStatus: status, OutParams: out}
}

func firstRowFormat(pending []token.Token) (token.RowFormat, bool) {
	for _, t := range pending {
		if rf, ok := t.(token.RowFormat); ok {
			return rf, true
		}
	}
	return token.RowFormat{}, false
}

func findMessage(pending []token.Token) string {
	for _, t := range pending {
		if m, ok := t.(token.Message); ok {
			return m.Text
		}
	}
	return ""
}

func dropAffectedRows(results []Result) []Result {
	out := results[:0:0]
	for _, r := range results {
		if _, ok := r.(AffectedRows); ok {
			continue
		}
		out = append(out, r)
	}
	return out
}
