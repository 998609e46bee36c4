package sybtds

import (
	"strconv"

	"github.com/ha1tch/sybtds/log"
	"github.com/ha1tch/sybtds/tdserr"
	"github.com/ha1tch/sybtds/token"
)

// consumeResult is everything one call to consume can hand back: the
// partitioned result list, plus the last DynamicAck/ParamsFormat tokens
// seen (a prepare reply carries exactly one of each).
type consumeResult struct {
	Results      []Result
	DynamicAck   *token.DynamicAck
	ParamsFormat *token.ParamsFormat
}

// consume is the token-stream consumer. It pulls tokens
// one at a time from payload, routing side-effect tokens (LoginAck,
// Capability, EnvChange) to the connection and buffering data tokens
// until a Done token partitions the buffer into a result.
func (c *Connection) consume(payload []byte) (consumeResult, error) {
	var pending []token.Token
	var out consumeResult

	buf := payload
	for len(buf) > 0 {
		tok, rest, err := c.codec.DecodeToken(buf, true)
		if err == token.ErrIncomplete {
			break
		}
		if err != nil {
			return consumeResult{}, tdserr.Wrap(err, tdserr.Local, "decoding reply token").Err()
		}
		buf = rest

		switch t := tok.(type) {
		case token.LoginAck:
			c.applyLoginAck(t)
		case token.Capability:
			c.capReq = t.Requested
			c.capResp = t.Responded
		case token.EnvChange:
			if err := c.applyEnvChange(t); err != nil {
				return consumeResult{}, err
			}
		case token.Done:
			newResults, more, err := assembleSegment(pending, t, out.Results)
			if err != nil {
				return consumeResult{}, err
			}
			out.Results = newResults
			if !more {
				pending = nil
			}
		default:
			if ack, ok := tok.(token.DynamicAck); ok {
				out.DynamicAck = &ack
			}
			if pf, ok := tok.(token.ParamsFormat); ok {
				out.ParamsFormat = &pf
			}
			pending = append(pending, tok)
		}
	}
	return out, nil
}

func (c *Connection) applyLoginAck(t token.LoginAck) {
	c.tdsVersion = t.TDSVer
	c.server = t.Server
	switch t.SubState {
	case token.SubStateAuthNegotiate:
		c.state = AuthNegotiate
	default:
		c.state = Connected
	}
	c.logger.Debug(log.CategoryProtocol, "loginack", "sub_state", c.state.String(), "server", t.Server.Name)
}

func (c *Connection) applyEnvChange(e token.EnvChange) error {
	for _, entry := range e.Changes {
		if entry.Key == EnvPacketSize {
			n, err := strconv.Atoi(entry.New)
			if err != nil {
				return tdserr.Wrapf(err, tdserr.Local, "invalid packet_size envchange %q", entry.New).Err()
			}
			c.retunePacketSize(n)
			c.env.Set(EnvPacketSize, entry.New)
			c.logger.Info(log.CategoryProtocol, "packet size renegotiated", "old", entry.Old, "new", entry.New)
			continue
		}
		c.logger.Debug(log.CategoryProtocol, "envchange", "key", entry.Key, "old", entry.Old, "new", entry.New)
		c.env.Set(entry.Key, entry.New)
	}
	return nil
}
