// Package mapping loads the static wallet→handle table.
package mapping

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"holder-tiers/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned for file extensions other than .json, .yaml, .yml and .csv.
	ErrUnsupportedFormat = errors.New("unsupported mapping format")
	// ErrMalformed is returned when the file parses but does not describe an address→handle table.
	ErrMalformed = errors.New("malformed mapping")
)

// Entry is one row of the mapping table.
type Entry struct {
	Address domain.Address
	Handle  domain.Handle
}

// Table is an ordered address→handle table. A nil *Table is empty.
type Table struct {
	entries    []Entry
	index      map[domain.Address]domain.Handle
	duplicates int
}

// NewTable builds a table from entries in order. Rows with an empty handle
// are dropped; for a repeated address the first row wins.
func NewTable(entries []Entry) *Table {
	t := &Table{index: make(map[domain.Address]domain.Handle, len(entries))}
	for _, e := range entries {
		if e.Address == "" || e.Handle == "" {
			continue
		}
		if _, ok := t.index[e.Address]; ok {
			t.duplicates++
			continue
		}
		t.index[e.Address] = e.Handle
		t.entries = append(t.entries, e)
	}
	return t
}

// Entries returns rows in file order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	return append([]Entry(nil), t.entries...)
}

// Lookup returns the handle mapped to addr.
func (t *Table) Lookup(addr domain.Address) (domain.Handle, bool) {
	if t == nil {
		return "", false
	}
	h, ok := t.index[addr]
	return h, ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Duplicates returns how many repeated addresses were ignored.
func (t *Table) Duplicates() int {
	if t == nil {
		return 0
	}
	return t.duplicates
}

// Load reads a mapping file. An empty path yields an empty table; a path that
// cannot be read is an error.
func Load(path string) (*Table, error) {
	if path == "" {
		return NewTable(nil), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping: %w", err)
	}
	defer f.Close()

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		entries, err = parseObject(f)
	case ".csv":
		entries, err = parseCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	return NewTable(entries), nil
}

// parseObject walks the document node so that key order is kept.
// JSON objects are valid YAML mappings.
func parseObject(r io.Reader) ([]Entry, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be an object", ErrMalformed)
	}

	entries := make([]Entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: line %d: expected address: handle", ErrMalformed, key.Line)
		}
		addr, err := domain.NormalizeAddress(key.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, key.Line, err)
		}
		entries = append(entries, Entry{Address: addr, Handle: domain.NormalizeHandle(value.Value)})
	}
	return entries, nil
}

func parseCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []Entry
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("%w: line %d: expected address,handle", ErrMalformed, line)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "address") {
			continue
		}
		addr, err := domain.NormalizeAddress(record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		entries = append(entries, Entry{Address: addr, Handle: domain.NormalizeHandle(record[1])})
	}
	return entries, nil
}
