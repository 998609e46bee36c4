package sybtds

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ha1tch/sybtds/log"
	"github.com/ha1tch/sybtds/tdserr"
	"github.com/ha1tch/sybtds/token"
)

// State is a connection's position in the session lifecycle.
type State int

const (
	Disconnected State = iota
	Connected
	// AuthNegotiate is recognized but not driven further: the server
	// asked for a negotiated-auth exchange this core does not implement.
	AuthNegotiate
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case AuthNegotiate:
		return "auth_negotiate"
	default:
		return "unknown"
	}
}

// Connection owns a single TDS session: the TCP socket, negotiated
// packet size and TDS version, server identity, capability bitsets, the
// environment mapping, and the prepared-statement registry.
//
// A Connection is not safe to share across goroutines: callers must
// serialize requests on a single connection themselves.
type Connection struct {
	mu sync.Mutex

	netConn net.Conn
	rbuf    []byte // leftover bytes not yet consumed by a complete message

	state      State
	packetSize int
	tdsVersion uint32
	server     token.ServerIdentity
	capReq     []byte
	capResp    []byte

	env      *Environment
	prepared *PreparedRegistry

	codec  token.Codec
	logger *log.Logger
	opts   Options
}

// PacketSize returns the negotiated packet size.
func (c *Connection) PacketSize() int { return c.packetSize }

// TDSVersion returns the negotiated TDS protocol version, zero if not
// yet connected.
func (c *Connection) TDSVersion() uint32 { return c.tdsVersion }

// Server returns the server identity reported at login.
func (c *Connection) Server() token.ServerIdentity { return c.server }

// Capabilities returns the requested and responded capability bitsets.
func (c *Connection) Capabilities() (requested, responded []byte) { return c.capReq, c.capResp }

// State returns the connection's current session state.
func (c *Connection) State() State { return c.state }

// Env returns a copy of the current environment mapping.
func (c *Connection) Env() map[string]string { return c.env.AsMap() }

// Connect opens a TCP connection to cfg's host/port and performs the
// login handshake. On success the session moves to Connected (or fails
// locally if the server asks for AuthNegotiate) and a housekeeping
// "use <database>" query is issued.
func Connect(cfg Options, timeout time.Duration, extra ...Option) (*Connection, error) {
	o := defaultOptions()
	overlay(&o, cfg)
	for _, opt := range extra {
		opt(&o)
	}

	c := &Connection{
		state:      Disconnected,
		packetSize: o.PacketSize,
		env:        o.environment(),
		prepared:   newPreparedRegistry(),
		codec:      o.Codec,
		logger:     o.Logger,
		opts:       o,
	}

	if err := c.dialAndLogin(timeout); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) dialAndLogin(timeout time.Duration) error {
	addr := net.JoinHostPort(c.opts.Host, portString(c.opts.Port))
	c.logger.Info(log.CategorySystem, "dialing", "addr", addr)
	dialer := net.Dialer{Timeout: timeout}
	nc, err := dialer.Dial("tcp", addr)
	if err != nil {
		c.state = Disconnected
		c.logger.Error(log.CategorySystem, "dial failed", err, "addr", addr)
		return tdserr.Wrap(err, tdserr.Socket, "dialing server").WithOp("connect").Err()
	}
	c.netConn = nc
	c.rbuf = nil

	login := token.Login{Env: envEntries(c.env)}
	if err := c.send([]token.Token{login}, token.PacketLogin, timeout); err != nil {
		return err
	}
	payload, err := c.readMessage(timeout)
	if err != nil {
		return err
	}
	if _, err := c.consume(payload); err != nil {
		return err
	}

	switch c.state {
	case Connected:
		// fall through to housekeeping use <database>
	case AuthNegotiate:
		c.forceDisconnect()
		return tdserr.New(tdserr.Local, "auth negotiate not implemented").WithOp("connect").Err()
	default:
		c.forceDisconnect()
		return tdserr.New(tdserr.Local, "login did not reach Connected state").WithOp("connect").Err()
	}

	if db, ok := c.env.Get(EnvDatabase); ok && db != "" {
		if _, err := c.sqlQueryNoReconnect("use "+db, timeout); err != nil {
			return err
		}
	}
	c.logger.Info(log.CategorySystem, "connected", "server", c.server.Name, "tds_version", c.tdsVersion)
	return nil
}

// Disconnect logs out (if Connected and timeout > 0) and closes the
// socket, always returning the environment so the caller can reconnect
// with the same parameters.
func (c *Connection) Disconnect(timeout time.Duration) (*Environment, error) {
	env := c.env.Clone()
	if c.state == Connected && timeout > 0 {
		if err := c.send([]token.Token{token.Logout{}}, token.PacketQuery, timeout); err == nil {
			c.readMessage(timeout) //nolint:errcheck // best-effort drain
		}
	}
	if c.netConn != nil {
		c.netConn.Close()
	}
	c.state = Disconnected
	return env, nil
}

// Reconnect disconnects (if needed) and connects again using the saved
// environment, the only implicit retry this core performs. A fresh login
// gets a fresh server session, so any statements prepared before the
// reconnect are discarded along with it: the server that handles the new
// session never saw those prepares and would reject them.
func (c *Connection) Reconnect() error {
	c.logger.Info(log.CategorySystem, "reconnecting")
	c.Disconnect(0)
	c.prepared = newPreparedRegistry()
	syncOptionsFromEnv(&c.opts, c.env)
	return c.dialAndLogin(c.opts.ReconnectTimeout)
}

func (c *Connection) forceDisconnect() {
	if c.netConn != nil {
		c.netConn.Close()
	}
	c.state = Disconnected
}

func portString(p int) string {
	if p == 0 {
		p = 5000 // conventional Sybase default
	}
	return strconv.Itoa(p)
}
