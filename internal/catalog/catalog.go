// Package catalog loads product records from CSV files.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is one product row from a catalog file.
type Record struct {
	ID      string
	Title   string
	Content string
}

// catalog files carry at least these columns, in any order.
var requiredColumns = []string{"id", "name", "description"}

// Load reads product records from the CSV file at path. The first row is
// the header; "id", "name" and "description" must all be present, extra
// columns are ignored.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return records, nil
}

// Read parses catalog records from r.
func Read(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("empty file, expected a header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("header is missing the %q column", name)
		}
	}

	var (
		records []Record
		seen    = make(map[string]int)
	)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := Record{
			ID:      strings.TrimSpace(row[columns["id"]]),
			Title:   strings.TrimSpace(row[columns["name"]]),
			Content: strings.TrimSpace(row[columns["description"]]),
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("line %d: record has an empty id", line)
		}
		if prev, ok := seen[rec.ID]; ok {
			return nil, fmt.Errorf("line %d: duplicate id %q, first seen on line %d", line, rec.ID, prev)
		}
		seen[rec.ID] = line
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, errors.New("no records after the header row")
	}
	return records, nil
}
