package token

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

// TestRoundTripFraming covers spec property 1: encoding a token list,
// fragmenting it into packets of varying sizes, reassembling the packets
// through the reader one chunk at a time, and decoding tokens back out
// must reproduce the original list in order.
func TestRoundTripFraming(t *testing.T) {
	codec := StdCodec{}
	tokens := []Token{
		Login{Env: []EnvChangeEntry{{Key: "host", New: "db1"}, {Key: "port", New: "5000"}}},
		Language{Text: []byte("select 1")},
		Dynamic{Op: DynamicExecute, Flags: DynamicHasArgs, StmtID: "s1", Body: ""},
		Params{Values: []interface{}{int64(42), "hello", 3.5, decimal.RequireFromString("12.34")}},
	}

	for _, packetSize := range []int{HeaderSize + 4, 32, 64, DefaultPacketSize} {
		body, err := codec.EncodeTokens(tokens)
		if err != nil {
			t.Fatalf("EncodeTokens: %v", err)
		}
		framed, err := codec.EncodePackets(body, PacketQuery, packetSize)
		if err != nil {
			t.Fatalf("EncodePackets(size=%d): %v", packetSize, err)
		}

		// Reassemble by extracting one packet at a time from the whole
		// framed stream, as the connection's reassembler does with its buffer.
		var reassembled []byte
		buf := framed
		for len(buf) > 0 {
			res, err := codec.DecodePacket(buf)
			if err == ErrIncomplete {
				t.Fatalf("unexpected ErrIncomplete with the whole stream present (size=%d)", packetSize)
			}
			if err != nil {
				t.Fatalf("DecodePacket(size=%d): %v", packetSize, err)
			}
			reassembled = append(reassembled, res.Body...)
			buf = res.Remainder
			if res.Last && len(buf) != 0 {
				t.Fatalf("last packet did not consume the whole stream, %d bytes remain", len(buf))
			}
		}

		var decoded []Token
		rest := reassembled
		for len(rest) > 0 {
			tok, remainder, err := codec.DecodeToken(rest, false)
			if err != nil {
				t.Fatalf("DecodeToken(size=%d): %v", packetSize, err)
			}
			decoded = append(decoded, tok)
			rest = remainder
		}

		if !reflect.DeepEqual(decoded, tokens) {
			t.Errorf("packetSize=%d: decoded = %#v, want %#v", packetSize, decoded, tokens)
		}
	}
}

func TestDecodePacket_IncompleteUntilFullHeader(t *testing.T) {
	codec := StdCodec{}
	body, _ := codec.EncodeTokens([]Token{Logout{}})
	framed, _ := codec.EncodePackets(body, PacketQuery, DefaultPacketSize)

	if _, err := codec.DecodePacket(framed[:HeaderSize-1]); err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete for a partial header, got %v", err)
	}
	if _, err := codec.DecodePacket(framed[:len(framed)-1]); err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete for a truncated packet, got %v", err)
	}
}

func TestEncodePackets_SplitsAcrossMultiplePacketsWhenOversize(t *testing.T) {
	codec := StdCodec{}
	body, _ := codec.EncodeTokens([]Token{Language{Text: make([]byte, 500)}})

	framed, err := codec.EncodePackets(body, PacketQuery, 64)
	if err != nil {
		t.Fatalf("EncodePackets: %v", err)
	}

	var packets int
	buf := framed
	for len(buf) > 0 {
		res, err := codec.DecodePacket(buf)
		if err != nil {
			t.Fatalf("DecodePacket: %v", err)
		}
		packets++
		buf = res.Remainder
		if res.Last {
			break
		}
	}
	if packets < 2 {
		t.Errorf("expected the oversized body to span multiple packets, got %d", packets)
	}
}

func TestDoneStatus_Has(t *testing.T) {
	d := DoneCount | DoneProc
	if !d.Has(DoneCount) || !d.Has(DoneProc) {
		t.Fatalf("Has failed for flags present in %v", d)
	}
	if d.Has(DoneError) {
		t.Fatalf("Has reported a flag that was not set")
	}
}
