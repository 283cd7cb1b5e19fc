package db

import (
	"io/fs"
	"os"
	"strings"
	"testing"
)

func TestMigrationFS_PairsUpAndDown(t *testing.T) {
	names, err := fs.Glob(MigrationFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no migrations embedded")
	}
	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", n)
		}
	}
	for base := range ups {
		if !downs[base] {
			t.Errorf("%s has no down migration", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("%s has no up migration", base)
		}
	}
}

func TestMigrationFS_CreatesTables(t *testing.T) {
	for file, table := range map[string]string{
		"migrations/000001_receipts.up.sql":     "receipts",
		"migrations/000002_fraud_events.up.sql": "fraud_events",
		"migrations/000003_audit_logs.up.sql":   "audit_logs",
	} {
		b, err := MigrationFS.ReadFile(file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		if !strings.Contains(string(b), table) {
			t.Errorf("%s does not mention table %s", file, table)
		}
	}
}

func TestOpen_RejectsUnreachableDSN(t *testing.T) {
	for _, dsn := range []string{"", "not-a-dsn", "postgres://", "postgres://u:p@localhost:99999/payshield"} {
		conn, err := Open(dsn)
		if err == nil {
			conn.Close()
			t.Fatalf("Open(%q) succeeded", dsn)
		}
		if conn != nil {
			t.Errorf("Open(%q) returned a non-nil db with an error", dsn)
		}
	}
}

func TestOpen_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	conn, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	var one int
	if err := conn.QueryRow("SELECT 1").Scan(&one); err != nil || one != 1 {
		t.Fatalf("SELECT 1 = %d, %v", one, err)
	}
}
