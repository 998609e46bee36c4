package sybtds

import (
	"testing"

	"github.com/ha1tch/sybtds/token"
)

func TestWithPacketSize_RejectsOutOfRange(t *testing.T) {
	o := defaultOptions()
	before := o.PacketSize

	WithPacketSize(token.MinPacketSize - 1)(&o)
	if o.PacketSize != before {
		t.Errorf("an out-of-range packet size was accepted: %d", o.PacketSize)
	}

	WithPacketSize(token.MaxPacketSize + 1)(&o)
	if o.PacketSize != before {
		t.Errorf("an out-of-range packet size was accepted: %d", o.PacketSize)
	}

	WithPacketSize(8192)(&o)
	if o.PacketSize != 8192 {
		t.Errorf("PacketSize = %d, want 8192", o.PacketSize)
	}
}

func TestOverlay_OnlyCopiesNonZeroFields(t *testing.T) {
	base := defaultOptions()
	base.Host = "orig-host"
	base.Port = 5000

	overlay(&base, Options{Port: 5001})

	if base.Host != "orig-host" {
		t.Errorf("Host was overwritten by a zero-value overlay field: %q", base.Host)
	}
	if base.Port != 5001 {
		t.Errorf("Port = %d, want 5001", base.Port)
	}
}

func TestEnvironmentFromOptions_CarriesAllWellKnownKeys(t *testing.T) {
	o := Options{
		Host: "h", Port: 5000, User: "u", Password: "p", Database: "d",
		AppName: "app", LibName: "lib", Language: "us_english", PacketSize: 4096,
	}
	env := o.environment()

	cases := map[string]string{
		EnvHost: "h", EnvUser: "u", EnvPassword: "p", EnvDatabase: "d",
		EnvAppName: "app", EnvLibName: "lib", EnvLanguage: "us_english",
		EnvPort: "5000", EnvPacketSize: "4096",
	}
	for k, want := range cases {
		if got, _ := env.Get(k); got != want {
			t.Errorf("env[%q] = %q, want %q", k, got, want)
		}
	}
}

func TestSyncOptionsFromEnv_UpdatesDialTargets(t *testing.T) {
	o := defaultOptions()
	o.Host = "old-host"
	o.Port = 5000

	env := NewEnvironment(map[string]string{
		EnvHost:       "new-host",
		EnvPort:       "5001",
		EnvDatabase:   "newdb",
		EnvPacketSize: "8192",
	})

	syncOptionsFromEnv(&o, env)

	if o.Host != "new-host" || o.Port != 5001 || o.Database != "newdb" || o.PacketSize != 8192 {
		t.Errorf("options not synced from environment: %+v", o)
	}
}
