package sybtds

import (
	"fmt"
	"time"

	"github.com/ha1tch/sybtds/log"
	"github.com/ha1tch/sybtds/tdserr"
	"github.com/ha1tch/sybtds/token"
)

// reconnectIfNeeded is the reconnect-on-disuse wrapper: any non-login
// operation invoked while the connection isn't Connected attempts
// exactly one reconnect cycle before proceeding.
func (c *Connection) reconnectIfNeeded() error {
	if c.state == Connected {
		return nil
	}
	return c.Reconnect()
}

// SQLQuery sends text as a language batch and parses the reply into a
// result list, reconnecting first if the connection isn't Connected.
func (c *Connection) SQLQuery(text string, timeout time.Duration) ([]Result, error) {
	if err := c.reconnectIfNeeded(); err != nil {
		return nil, err
	}
	return c.sqlQueryNoReconnect(text, timeout)
}

// sqlQueryNoReconnect is the one-shot body SQLQuery and the post-login
// housekeeping "use <database>" both drive, without the implicit retry.
func (c *Connection) sqlQueryNoReconnect(text string, timeout time.Duration) ([]Result, error) {
	if c.state != Connected {
		return nil, tdserr.New(tdserr.Local, "request issued while not connected").WithOp("sql_query").Err()
	}
	start := time.Now()
	// The codec owns character-set conversion; the core passes text
	// through untouched so it is never double-encoded.
	lang := token.Language{Text: []byte(text)}
	if err := c.send([]token.Token{lang}, token.PacketQuery, timeout); err != nil {
		return nil, err
	}
	payload, err := c.readMessage(timeout)
	if err != nil {
		return nil, err
	}
	out, err := c.consume(payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug(log.CategoryPerformance, "sql_query", "elapsed_ms", time.Since(start).Milliseconds(), "results", len(out.Results))
	return out.Results, nil
}

// Prepare creates a server-side dynamic statement identified by stmtID
// and stores its parameter format for later Execute calls.
func (c *Connection) Prepare(stmtID, sql string, timeout time.Duration) error {
	if err := c.reconnectIfNeeded(); err != nil {
		return err
	}

	body := fmt.Sprintf("create proc %s as %s", stmtID, sql)
	dyn := token.Dynamic{Op: token.DynamicPrepare, Flags: token.DynamicNoFlags, StmtID: stmtID, Body: body}
	if err := c.send([]token.Token{dyn}, token.PacketQuery, timeout); err != nil {
		return err
	}
	payload, err := c.readMessage(timeout)
	if err != nil {
		return err
	}
	out, err := c.consume(payload)
	if err != nil {
		return err
	}
	if out.DynamicAck == nil || out.ParamsFormat == nil {
		return tdserr.New(tdserr.Local, "prepare reply missing dynamic ack or paramsformat").WithOp("prepare").WithField("stmt_id", stmtID).Err()
	}
	c.prepared.Put(stmtID, *out.ParamsFormat)
	return nil
}

// Execute runs a previously prepared statement. With no args it sends a
// bare DYNAMIC execute; with args it replays the stored parameter format
// verbatim ahead of the parameter values.
func (c *Connection) Execute(stmtID string, args []interface{}, timeout time.Duration) ([]Result, error) {
	if err := c.reconnectIfNeeded(); err != nil {
		return nil, err
	}

	var tokens []token.Token
	if len(args) == 0 {
		tokens = []token.Token{
			token.Dynamic{Op: token.DynamicExecute, Flags: token.DynamicNoFlags, StmtID: stmtID},
		}
	} else {
		format, ok := c.prepared.Get(stmtID)
		if !ok {
			return nil, tdserr.New(tdserr.Local, "execute with args on unprepared statement").WithOp("execute").WithField("stmt_id", stmtID).Err()
		}
		tokens = []token.Token{
			token.Dynamic{Op: token.DynamicExecute, Flags: token.DynamicHasArgs, StmtID: stmtID},
			format,
			token.Params{Values: args},
		}
	}

	if err := c.send(tokens, token.PacketQuery, timeout); err != nil {
		return nil, err
	}
	payload, err := c.readMessage(timeout)
	if err != nil {
		return nil, err
	}
	out, err := c.consume(payload)
	if err != nil {
		return nil, err
	}
	return out.Results, nil
}
