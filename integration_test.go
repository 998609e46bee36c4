//go:build integration

package sybtds

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	_ "github.com/microsoft/go-mssqldb"
)

// TestIntegration_ConnectAndQuery exercises a real server: this core's own
// Connect/SQLQuery against the address in SYBTDS_INTEGRATION_ADDR, cross
// checked with database/sql via go-mssqldb against the same address as an
// independent reference client. Skipped unless that env var is set.
func TestIntegration_ConnectAndQuery(t *testing.T) {
	addr := os.Getenv("SYBTDS_INTEGRATION_ADDR")
	if addr == "" {
		t.Skip("SYBTDS_INTEGRATION_ADDR not set, skipping integration test")
	}
	user := os.Getenv("SYBTDS_INTEGRATION_USER")
	pass := os.Getenv("SYBTDS_INTEGRATION_PASSWORD")

	host, port := splitHostPort(t, addr)

	conn, err := Connect(Options{
		Host:     host,
		Port:     port,
		User:     user,
		Password: pass,
		AppName:  "sybtds-integration-test",
		LibName:  "sybtds",
	}, 10*time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Disconnect(5 * time.Second)

	results, err := conn.SQLQuery("select 1", 5*time.Second)
	if err != nil {
		t.Fatalf("SQLQuery: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one result")
	}

	connStr := fmt.Sprintf("sqlserver://%s:%s@%s:%d?connection+timeout=5", user, pass, host, port)
	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		t.Fatalf("reference driver Open: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var one int
	if err := db.QueryRowContext(ctx, "select 1").Scan(&one); err != nil {
		t.Fatalf("reference driver query: %v", err)
	}
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("invalid SYBTDS_INTEGRATION_ADDR %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("invalid port in SYBTDS_INTEGRATION_ADDR %q: %v", addr, err)
	}
	return host, port
}
