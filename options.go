package sybtds

import (
	"strconv"
	"time"

	"github.com/ha1tch/sybtds/log"
	"github.com/ha1tch/sybtds/token"
	"github.com/ha1tch/sybtds/version"
)

// Options configures a new connection. It doubles as the environment
// source for Connect and is what Reconnect replays against.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	AppName  string
	LibName  string
	Language string

	PacketSize int

	// Encrypt/TrustServerCert are accepted for config-surface parity with
	// the teacher's tds/tls.go options but are inert: TLS is an explicit
	// Non-goal of this core.
	Encrypt         string
	TrustServerCert bool

	Codec  token.Codec
	Logger *log.Logger

	// ReconnectTimeout bounds the dial+login performed transparently
	// whenever a request finds the connection unexpectedly disconnected.
	ReconnectTimeout time.Duration
}

// Option mutates Options, mirroring the teacher's functional ConnOption
// pattern in tds/conn.go.
type Option func(*Options)

// WithPacketSize sets the initial TDS packet size.
func WithPacketSize(size int) Option {
	return func(o *Options) {
		if size >= token.MinPacketSize && size <= token.MaxPacketSize {
			o.PacketSize = size
		}
	}
}

// WithCodec overrides the default reference codec.
func WithCodec(c token.Codec) Option {
	return func(o *Options) { o.Codec = c }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithEncrypt sets the encrypt mode string. Accepted, not enforced.
func WithEncrypt(mode string) Option {
	return func(o *Options) { o.Encrypt = mode }
}

func defaultOptions() Options {
	return Options{
		PacketSize: token.DefaultPacketSize,
		LibName:    version.Full(),
		Codec:      token.StdCodec{},
		Logger:     log.New(log.DefaultConfig()),
	}
}

// environment renders Options into the initial Environment sent on
// Connect/used for reconnect.
func (o Options) environment() *Environment {
	return NewEnvironment(map[string]string{
		EnvHost:       o.Host,
		EnvPort:       strconv.Itoa(o.Port),
		EnvUser:       o.User,
		EnvPassword:   o.Password,
		EnvDatabase:   o.Database,
		EnvAppName:    o.AppName,
		EnvLibName:    o.LibName,
		EnvLanguage:   o.Language,
		EnvPacketSize: strconv.Itoa(o.PacketSize),
	})
}

// Timeout is the per-call deadline used for socket writes and for each
// individual receive inside the packet reassembler, applied fresh to
// every read rather than accumulated across a multi-packet reply.
type Timeout = time.Duration

// overlay copies every non-zero field of cfg onto o.
func overlay(o *Options, cfg Options) {
	if cfg.Host != "" {
		o.Host = cfg.Host
	}
	if cfg.Port != 0 {
		o.Port = cfg.Port
	}
	if cfg.User != "" {
		o.User = cfg.User
	}
	if cfg.Password != "" {
		o.Password = cfg.Password
	}
	if cfg.Database != "" {
		o.Database = cfg.Database
	}
	if cfg.AppName != "" {
		o.AppName = cfg.AppName
	}
	if cfg.LibName != "" {
		o.LibName = cfg.LibName
	}
	if cfg.Language != "" {
		o.Language = cfg.Language
	}
	if cfg.PacketSize != 0 {
		o.PacketSize = cfg.PacketSize
	}
	if cfg.Encrypt != "" {
		o.Encrypt = cfg.Encrypt
	}
	if cfg.TrustServerCert {
		o.TrustServerCert = cfg.TrustServerCert
	}
	if cfg.Codec != nil {
		o.Codec = cfg.Codec
	}
	if cfg.Logger != nil {
		o.Logger = cfg.Logger
	}
	if cfg.ReconnectTimeout != 0 {
		o.ReconnectTimeout = cfg.ReconnectTimeout
	}
}

// syncOptionsFromEnv refreshes the host/port/database/packet-size fields
// Reconnect dials with from the live environment, which may have been
// updated by server ENVCHANGE tokens (e.g. a routed database name or a
// renegotiated packet size) since the original Connect.
func syncOptionsFromEnv(o *Options, env *Environment) {
	if v, ok := env.Get(EnvHost); ok && v != "" {
		o.Host = v
	}
	if v, ok := env.Get(EnvPort); ok {
		if n, err := strconv.Atoi(v); err == nil && n != 0 {
			o.Port = n
		}
	}
	if v, ok := env.Get(EnvDatabase); ok {
		o.Database = v
	}
	if v, ok := env.Get(EnvPacketSize); ok {
		if n, err := strconv.Atoi(v); err == nil && n != 0 {
			o.PacketSize = n
		}
	}
}

// envEntries renders an Environment into the ordered (key, new) pairs a
// LOGIN token carries.
func envEntries(env *Environment) []token.EnvChangeEntry {
	keys := env.Keys()
	out := make([]token.EnvChangeEntry, 0, len(keys))
	for _, k := range keys {
		v, _ := env.Get(k)
		out = append(out, token.EnvChangeEntry{Key: k, New: v})
	}
	return out
}
