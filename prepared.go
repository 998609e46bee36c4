package sybtds

import "github.com/ha1tch/sybtds/token"

// PreparedRegistry maps a statement identifier to the parameter format
// token the server returned at prepare time, so execute can replay it
// verbatim. Entries are never removed individually; a fresh login clears
// the whole registry, since the new server session never saw the old
// prepares.
type PreparedRegistry struct {
	entries map[string]token.ParamsFormat
}

func newPreparedRegistry() *PreparedRegistry {
	return &PreparedRegistry{entries: make(map[string]token.ParamsFormat)}
}

// Put records the parameter format for a statement id, overwriting any
// prior entry (re-preparing the same id is allowed).
func (r *PreparedRegistry) Put(id string, format token.ParamsFormat) {
	r.entries[id] = format
}

// Get returns the stored parameter format for id, if prepared.
func (r *PreparedRegistry) Get(id string) (token.ParamsFormat, bool) {
	f, ok := r.entries[id]
	return f, ok
}

// Has reports whether id has been prepared.
func (r *PreparedRegistry) Has(id string) bool {
	_, ok := r.entries[id]
	return ok
}
