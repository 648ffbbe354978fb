package db

import (
	"os"
	"testing"
)

func TestOpen_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"", "invalid-dsn", "postgres://"} {
		db, err := Open(dsn)
		if err == nil {
			db.Close()
			t.Errorf("Open(%q): want error", dsn)
			continue
		}
		if db != nil {
			t.Errorf("Open(%q): db should be nil on error", dsn)
		}
	}
}

func TestOpen_Success(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := Open(dsn)
	if err != nil {
		t.Skipf("database unavailable: %v", err)
	}
	defer db.Close()

	var result int
	if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
		t.Errorf("query: %v", err)
	}
}
