package main

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

var createTable = regexp.MustCompile(`(?i)CREATE TABLE\s+(\w+)`)

func TestSQLMigrations_HaveGooseDirectives(t *testing.T) {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", ".."))
	migrationsDir := filepath.Join(repoRoot, "db", "migrations")

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", migrationsDir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(migrationsDir, e.Name()))
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", e.Name(), err)
		}
		s := string(b)
		up := strings.Index(s, "-- +goose Up")
		down := strings.Index(s, "-- +goose Down")
		if up < 0 {
			t.Fatalf("%s missing '-- +goose Up'", e.Name())
		}
		if down < 0 {
			t.Fatalf("%s missing '-- +goose Down'", e.Name())
		}
		if down < up {
			t.Fatalf("%s has Down before Up", e.Name())
		}

		// every table created on the way up is dropped on the way down
		for _, m := range createTable.FindAllStringSubmatch(s[up:down], -1) {
			if !strings.Contains(s[down:], "DROP TABLE IF EXISTS "+m[1]) {
				t.Fatalf("%s does not drop %s in Down", e.Name(), m[1])
			}
		}
	}
}
