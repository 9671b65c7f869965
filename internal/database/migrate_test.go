package database

import (
	"reflect"
	"testing"
	"testing/fstest"
)

func TestPending(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_index.sql":   {Data: []byte("CREATE INDEX x ON t (a);")},
		"migrations/001_initial.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
		"migrations/README.md":       {Data: []byte("notes")},
		"migrations/old/003.sql":     {Data: []byte("-- nested")},
	}

	tests := []struct {
		name    string
		applied map[string]bool
		want    []string
	}{
		{"fresh", map[string]bool{}, []string{"001_initial.sql", "002_index.sql"}},
		{"partially applied", map[string]bool{"001_initial.sql": true}, []string{"002_index.sql"}},
		{"up to date", map[string]bool{"001_initial.sql": true, "002_index.sql": true}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Pending(fsys, "migrations", tc.applied)
			if err != nil {
				t.Fatalf("Pending: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Pending() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPending_MissingDir(t *testing.T) {
	if _, err := Pending(fstest.MapFS{}, "migrations", nil); err == nil {
		t.Error("expected error for missing directory")
	}
}
