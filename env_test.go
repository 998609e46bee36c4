package sybtds

import "testing"

func TestEnvironment_SetOverwritesWithoutReordering(t *testing.T) {
	e := NewEnvironment(map[string]string{EnvHost: "h1", EnvPort: "5000"})
	e.Set(EnvHost, "h2")

	if v, _ := e.Get(EnvHost); v != "h2" {
		t.Errorf("Get(host) = %q, want h2", v)
	}
	keys := e.Keys()
	if len(keys) != 2 || keys[0] != EnvHost || keys[1] != EnvPort {
		t.Errorf("Keys() = %v, want [host port] in that order", keys)
	}
}

func TestEnvironment_CloneIsIndependent(t *testing.T) {
	e := NewEnvironment(map[string]string{EnvHost: "h1"})
	c := e.Clone()
	c.Set(EnvHost, "h2")

	if v, _ := e.Get(EnvHost); v != "h1" {
		t.Errorf("original mutated: Get(host) = %q, want h1", v)
	}
	if v, _ := c.Get(EnvHost); v != "h2" {
		t.Errorf("clone not mutated: Get(host) = %q, want h2", v)
	}
}

func TestEnvironment_PreservesWellKnownOrder(t *testing.T) {
	e := NewEnvironment(map[string]string{
		EnvPacketSize: "4096",
		EnvHost:       "h1",
		EnvUser:       "u1",
	})
	want := []string{EnvHost, EnvUser, EnvPacketSize}
	got := e.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
