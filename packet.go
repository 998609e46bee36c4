package sybtds

import (
	"net"
	"time"

	"github.com/ha1tch/sybtds/log"
	"github.com/ha1tch/sybtds/tdserr"
	"github.com/ha1tch/sybtds/token"
)

// send encodes the token list, fragments it into packets of the current
// packet size, and writes the whole framed stream in a single call. A
// write failure is a socket error and force-disconnects the connection;
// an encoding or framing failure is a local error and leaves it as is.
func (c *Connection) send(tokens []token.Token, kind token.PacketKind, timeout time.Duration) error {
	body, err := c.codec.EncodeTokens(tokens)
	if err != nil {
		return tdserr.Wrap(err, tdserr.Local, "encoding token list").Err()
	}
	framed, err := c.codec.EncodePackets(body, kind, c.packetSize)
	if err != nil {
		return tdserr.Wrap(err, tdserr.Local, "framing packets").Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if timeout > 0 {
		c.netConn.SetWriteDeadline(time.Now().Add(timeout))
	} else {
		c.netConn.SetWriteDeadline(time.Time{})
	}
	if _, err := c.netConn.Write(framed); err != nil {
		c.logger.Error(log.CategorySystem, "write failed", err)
		c.forceDisconnect()
		return tdserr.Wrap(err, tdserr.Socket, "writing request").Err()
	}
	return nil
}

// readMessage reassembles one full message from the wire: it repeatedly
// tries to extract one packet from the leftover buffer, reading more
// bytes from the socket (under timeout, applied per receive call) only
// when the buffer doesn't yet hold a complete packet, until a last
// packet is seen.
func (c *Connection) readMessage(timeout time.Duration) ([]byte, error) {
	var payload []byte
	buf := c.rbuf
	for {
		res, err := c.codec.DecodePacket(buf)
		if err == token.ErrIncomplete {
			chunk, rerr := c.receive(timeout)
			if rerr != nil {
				c.logger.Error(log.CategorySystem, "read failed", rerr)
				c.forceDisconnect()
				return nil, tdserr.Wrap(rerr, tdserr.Socket, "reading reply").Err()
			}
			buf = append(buf, chunk...)
			continue
		}
		if err != nil {
			return nil, tdserr.Wrap(err, tdserr.Local, "decoding packet header").Err()
		}
		payload = append(payload, res.Body...)
		buf = res.Remainder
		if res.Last {
			c.rbuf = buf
			return payload, nil
		}
	}
}

func (c *Connection) receive(timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timeout > 0 {
		c.netConn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		c.netConn.SetReadDeadline(time.Time{})
	}
	tmp := make([]byte, c.packetSize)
	n, err := c.netConn.Read(tmp)
	if err != nil {
		return nil, err
	}
	return tmp[:n], nil
}

// retunePacketSize updates the negotiated packet size and the OS-level
// receive buffer for the socket to match.
func (c *Connection) retunePacketSize(size int) {
	c.packetSize = size
	if tc, ok := c.netConn.(*net.TCPConn); ok {
		tc.SetReadBuffer(size)
	}
	c.logger.Debug(log.CategorySystem, "packet size retuned", "size", size)
}
