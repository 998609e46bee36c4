package sybtds

// Recognized environment keys.
const (
	EnvHost       = "host"
	EnvPort       = "port"
	EnvUser       = "user"
	EnvPassword   = "password"
	EnvDatabase   = "database"
	EnvAppName    = "app_name"
	EnvLibName    = "lib_name"
	EnvLanguage   = "language"
	EnvPacketSize = "packet_size"
)

// Environment is an ordered mapping from well-known keys to values. The
// server may push updates via ENVCHANGE tokens; it always reflects the
// last accepted value from the server if any, else the caller-supplied
// value.
type Environment struct {
	order  []string
	values map[string]string
}

// NewEnvironment builds an Environment from the given initial values. The
// well-known keys come first, in a fixed order regardless of map iteration
// order; any other keys follow in map iteration order.
func NewEnvironment(initial map[string]string) *Environment {
	e := &Environment{values: make(map[string]string, len(initial))}
	for _, k := range []string{EnvHost, EnvPort, EnvUser, EnvPassword, EnvDatabase, EnvAppName, EnvLibName, EnvLanguage, EnvPacketSize} {
		if v, ok := initial[k]; ok {
			e.Set(k, v)
		}
	}
	// Preserve any caller-supplied keys outside the well-known set too.
	for k, v := range initial {
		if _, ok := e.values[k]; !ok {
			e.Set(k, v)
		}
	}
	return e
}

// Get returns the value for key and whether it is present.
func (e *Environment) Get(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Set upserts key, appending it to the order if new.
func (e *Environment) Set(key, value string) {
	if _, ok := e.values[key]; !ok {
		e.order = append(e.order, key)
	}
	e.values[key] = value
}

// Keys returns the keys in insertion order.
func (e *Environment) Keys() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Clone deep-copies the environment, used so Disconnect can hand back a
// snapshot a caller may reconnect with safely.
func (e *Environment) Clone() *Environment {
	c := &Environment{
		order:  make([]string, len(e.order)),
		values: make(map[string]string, len(e.values)),
	}
	copy(c.order, e.order)
	for k, v := range e.values {
		c.values[k] = v
	}
	return c
}

// AsMap returns a copy of the environment as a plain map.
func (e *Environment) AsMap() map[string]string {
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}
