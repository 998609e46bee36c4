package sybtds

import (
	"net"
	"testing"
	"time"

	"github.com/ha1tch/sybtds/tdserr"
	"github.com/ha1tch/sybtds/token"
)

// fakeServerReadRequest drains one framed request off conn and returns its decoded
// tokens; it does not itself talk TCP semantics beyond what net.Pipe gives.
func fakeServerReadRequest(t *testing.T, conn net.Conn) []token.Token {
	t.Helper()
	codec := token.StdCodec{}
	var buf []byte
	var payload []byte
	for {
		res, err := codec.DecodePacket(buf)
		if err == token.ErrIncomplete {
			tmp := make([]byte, 4096)
			n, rerr := conn.Read(tmp)
			if rerr != nil {
				t.Fatalf("fake server read: %v", rerr)
			}
			buf = append(buf, tmp[:n]...)
			continue
		}
		if err != nil {
			t.Fatalf("fake server decode packet: %v", err)
		}
		payload = append(payload, res.Body...)
		buf = res.Remainder
		if res.Last {
			break
		}
	}

	var tokens []token.Token
	rest := payload
	for len(rest) > 0 {
		tok, remainder, err := codec.DecodeToken(rest, false)
		if err != nil {
			t.Fatalf("fake server decode token: %v", err)
		}
		tokens = append(tokens, tok)
		rest = remainder
	}
	return tokens
}

func fakeServerReply(t *testing.T, conn net.Conn, tokens ...token.Token) {
	t.Helper()
	codec := token.StdCodec{}
	body, err := codec.EncodeTokens(tokens)
	if err != nil {
		t.Fatalf("fake server encode: %v", err)
	}
	framed, err := codec.EncodePackets(body, token.PacketQuery, token.DefaultPacketSize)
	if err != nil {
		t.Fatalf("fake server frame: %v", err)
	}
	if _, err := conn.Write(framed); err != nil {
		t.Fatalf("fake server write: %v", err)
	}
}

// dialWithFakeServer wires a Connection directly to a net.Pipe peer and
// hands the peer to the caller to script a login exchange, bypassing
// dialAndLogin's real net.Dial.
func dialWithFakeServer(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	c := newTestConnection()
	c.netConn = client
	return c, server
}

func TestConnect_LoginAckConnectsAndRunsUseDatabase(t *testing.T) {
	c, server := dialWithFakeServer(t)
	c.opts.Database = "mydb"
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// consumeResult of the initial login(-like) exchange is driven by
		// the test directly invoking consume, so here we only script the
		// "use mydb" housekeeping query fakeServer sees afterward: feed
		// the loginack first.
		fakeServerReply(t, server, token.LoginAck{SubState: token.SubStateConnected, Server: token.ServerIdentity{Name: "ASE"}}, token.Done{Flags: token.DoneCount})
		fakeServerReadRequest(t, server) // the "use mydb" language token
		fakeServerReply(t, server, token.Done{Flags: token.DoneCount})
	}()

	payload, err := c.readMessage(2 * time.Second)
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}
	if _, err := c.consume(payload); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if c.state != Connected {
		t.Fatalf("state = %v, want Connected", c.state)
	}

	if _, err := c.sqlQueryNoReconnect("use mydb", 2*time.Second); err != nil {
		t.Fatalf("sqlQueryNoReconnect: %v", err)
	}
	<-done
}

func TestReconnectIfNeeded_SkipsWhenConnected(t *testing.T) {
	c := newTestConnection()
	c.state = Connected
	if err := c.reconnectIfNeeded(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPrepareAndExecute_RegistryRoundTrip(t *testing.T) {
	c, server := dialWithFakeServer(t)
	c.state = Connected
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fakeServerReadRequest(t, server) // the dynamic prepare request
		fakeServerReply(t, server,
			token.DynamicAck{Status: 0, ID: "s1"},
			token.ParamsFormat{Raw: []byte{0x01, 0x02}},
			token.Done{Flags: token.DoneCount},
		)

		fakeServerReadRequest(t, server) // the dynamic execute with args
		fakeServerReply(t, server,
			token.RowFormat{Formats: []token.ColumnFormat{{ColumnName: "n"}}},
			token.Row{Values: []interface{}{int64(7)}},
			token.Done{Flags: token.DoneCount, Count: 1},
		)
	}()

	if err := c.Prepare("s1", "select * from t where id = ?", 2*time.Second); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !c.prepared.Has("s1") {
		t.Fatalf("expected s1 to be registered after prepare")
	}

	results, err := c.Execute("s1", []interface{}{int64(7)}, 2*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	<-done

	// Execute reads the registry without removing the entry (spec
	// property 4).
	if !c.prepared.Has("s1") {
		t.Fatalf("registry entry disappeared after execute")
	}
}

func TestReconnect_ClearsPreparedRegistry(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	addr := ln.Addr().(*net.TCPAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close()
		fakeServerReadRequest(t, conn) // the login request
		fakeServerReply(t, conn,
			token.LoginAck{SubState: token.SubStateConnected, Server: token.ServerIdentity{Name: "ASE"}},
			token.Done{Flags: token.DoneCount},
		)
	}()

	c := newTestConnection()
	c.state = Connected
	c.opts.Host = addr.IP.String()
	c.opts.Port = addr.Port
	c.opts.ReconnectTimeout = 2 * time.Second
	c.prepared.Put("s1", token.ParamsFormat{Raw: []byte{0x01}})

	if err := c.Reconnect(); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if c.prepared.Has("s1") {
		t.Fatal("expected prepared registry to be cleared after Reconnect")
	}
	<-done
}

func TestExecute_WithArgsButUnprepared_FailsLocally(t *testing.T) {
	c := newTestConnection()
	c.state = Connected

	_, err := c.Execute("never-prepared", []interface{}{int64(1)}, time.Second)
	if err == nil {
		t.Fatal("expected an error for executing an unprepared statement with args")
	}
	if tdserr.GetKind(err) != tdserr.Local {
		t.Errorf("expected a local error kind, got %v", tdserr.GetKind(err))
	}
}
