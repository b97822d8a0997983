package mapping

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"holder-tiers/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_JSONPreservesOrder(t *testing.T) {
	path := writeFile(t, "map.json", `{"0xBBB": "@Bob", "0xAAA": "alice", "0xCCC": "Carol"}`)

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []Entry{
		{Address: "0xbbb", Handle: "bob"},
		{Address: "0xaaa", Handle: "alice"},
		{Address: "0xccc", Handle: "carol"},
	}
	got := table.Entries()
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if h, ok := table.Lookup("0xaaa"); !ok || h != "alice" {
		t.Errorf("Lookup(0xaaa) = %q, %v", h, ok)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "map.yaml", "0xA: alice\n0xB: bob\n")

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", table.Len())
	}
	if table.Entries()[0].Handle != "alice" {
		t.Errorf("expected alice first, got %s", table.Entries()[0].Handle)
	}
}

func TestLoad_CSVWithHeader(t *testing.T) {
	path := writeFile(t, "map.csv", "address,handle\n0xA,alice\n0xB, @bob\n0xA,mallory\n")

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", table.Len())
	}
	if h, _ := table.Lookup("0xa"); h != "alice" {
		t.Errorf("first row should win, got %s", h)
	}
	if table.Duplicates() != 1 {
		t.Errorf("expected 1 duplicate, got %d", table.Duplicates())
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	table, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("expected empty table")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(writeFile(t, "map.txt", "x")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Load(writeFile(t, "list.json", `["0xA"]`)); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for array, got %v", err)
	}
	if _, err := Load(writeFile(t, "nested.json", `{"0xA": {"h": "x"}}`)); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for nested value, got %v", err)
	}
}

func TestNilTable(t *testing.T) {
	var table *Table
	if table.Len() != 0 || table.Entries() != nil {
		t.Error("nil table should be empty")
	}
	if _, ok := table.Lookup(domain.Address("0xa")); ok {
		t.Error("nil table lookup should miss")
	}
}
