// Package sybtds implements the connection core of a TDS 5.0 client for
// Sybase-family database servers: establishing a session over TCP,
// performing the login handshake, sending query/prepare/execute
// requests, and decoding the streamed token reply into result sets,
// affected-row counts, or stored-procedure outputs.
//
// The wire codec (byte-exact token and packet layouts) is an external
// collaborator, consumed through the token.Codec interface; see the
// token package for the reference implementation used by this module's
// own tests.
package sybtds
