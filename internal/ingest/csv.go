package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// columnRenames maps spreadsheet headers onto canonical column names
var columnRenames = map[string]string{
	"Mobilization Advance Taken": "mobilization_taken",
	"No_of_Staff_RFB":            "rfb_staff",
	"CESMPS_Submitted":           "cesmps",
	"OHS_Measures":               "ohs",
	"IPC 1":                      "ipc_1",
	"IPC 2":                      "ipc_2",
	"IPC 3":                      "ipc_3",
	"IPC 4":                      "ipc_4",
	"IPC 5":                      "ipc_5",
	"IPC 6":                      "ipc_6",
	"Progress %":                 "progress_pct",
	"Progress":                   "progress_pct",
	"Variance":                   "variance",
}

// CanonicalColumn converts a raw header into its canonical snake_case name
func CanonicalColumn(header string) string {
	header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	if renamed, ok := columnRenames[header]; ok {
		return renamed
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range header {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// DecodeCSV reads a CSV export with a header row into raw rows.
// Blank lines and rows whose cells are all empty are dropped.
func DecodeCSV(source string, r io.Reader) ([]RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty CSV", source)
		}
		return nil, fmt.Errorf("%s: failed to read CSV headers: %w", source, err)
	}

	columns := make([]string, len(headers))
	for i, h := range headers {
		columns[i] = CanonicalColumn(h)
	}

	var rows []RawRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// csv.ParseError carries the line number
			return nil, fmt.Errorf("%s: failed to read CSV: %w", source, err)
		}
		// File line where the record starts
		line, _ := reader.FieldPos(0)

		fields := make(map[string]string, len(columns))
		empty := true
		for i, value := range record {
			if i >= len(columns) || columns[i] == "" {
				continue
			}
			if trim(value) != "" {
				empty = false
			}
			// First occurrence wins for duplicated headers
			if _, seen := fields[columns[i]]; !seen {
				fields[columns[i]] = value
			}
		}
		if empty {
			continue
		}

		rows = append(rows, RawRow{Source: source, Line: line, Fields: fields})
	}

	return rows, nil
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
