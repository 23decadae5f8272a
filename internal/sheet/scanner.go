// Package sheet provides the raw section scanner and format detection for
// Illumina sample sheets. It splits INI-style CSV text into ordered sections
// without interpreting them; variant-specific meaning lives in the schema
// package.
package sheet

import (
	"fmt"
	"strings"
)

// cleaner removes the characters Illumina tooling (and Excel exports) sprinkle
// into sample sheets: quotes, carriage returns, and tabs.
var cleaner = strings.NewReplacer(`"`, "", "'", "", "\r", "", "\t", "")

// Row is a single line inside a section, already split on commas.
// Blank rows (empty lines and all-comma padding rows) are preserved so row
// positions survive a scan, but carry no fields.
type Row struct {
	Line   int
	Fields []string
	Blank  bool
}

// Section is a named block of rows opened by a [Name] line.
type Section struct {
	Name  string // normalized, lower case
	Label string // original spelling from the file
	Line  int
	Rows  []Row
}

// KeyValue is one key/value row extracted from a section.
type KeyValue struct {
	Key   string
	Value string
	Line  int
}

// StructuralError records a defect found while scanning or extracting rows.
// Structural errors never abort a parse; the defective row is skipped and
// scanning continues.
type StructuralError struct {
	Line    int
	Section string
	Message string
}

func (e StructuralError) String() string {
	if e.Section == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("line %d [%s]: %s", e.Line, e.Section, e.Message)
}

// Document is the ordered result of scanning one sample sheet.
type Document struct {
	Sections []*Section
	Errors   []StructuralError

	index map[string]*Section
}

// Section looks a section up by name, case-insensitively.
func (d *Document) Section(name string) (*Section, bool) {
	s, ok := d.index[strings.ToLower(name)]
	return s, ok
}

// Has reports whether a section with the given name exists.
func (d *Document) Has(name string) bool {
	_, ok := d.Section(name)
	return ok
}

// Scan splits sample-sheet text into sections. It is a pure function: no
// I/O, no state. Section names are normalized to lower case and the first
// occurrence wins when a name repeats; rows under a repeated section are
// dropped with a structural error. Content before the first section header
// is ignored.
func Scan(text string) *Document {
	doc := &Document{index: make(map[string]*Section)}

	text = strings.TrimPrefix(text, "\uFEFF")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var current *Section

	for i, raw := range lines {
		lineNo := i + 1
		line := cleaner.Replace(raw)
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasPrefix(trimmed, "[") {
			end := strings.Index(trimmed, "]")
			if end < 0 {
				doc.Errors = append(doc.Errors, StructuralError{
					Line:    lineNo,
					Message: fmt.Sprintf("unterminated section header %q", trimmed),
				})
				continue
			}
			label := strings.TrimSpace(trimmed[1:end])
			name := strings.ToLower(label)
			if prev, seen := doc.index[name]; seen {
				doc.Errors = append(doc.Errors, StructuralError{
					Line:    lineNo,
					Section: name,
					Message: fmt.Sprintf("duplicate section [%s] ignored, first occurrence at line %d kept", label, prev.Line),
				})
				current = nil
				continue
			}
			current = &Section{Name: name, Label: label, Line: lineNo}
			doc.Sections = append(doc.Sections, current)
			doc.index[name] = current
			continue
		}

		if current == nil {
			// Preamble before the first section, or rows under a
			// duplicate section header.
			continue
		}

		if isBlankLine(trimmed) {
			current.Rows = append(current.Rows, Row{Line: lineNo, Blank: true})
			continue
		}

		current.Rows = append(current.Rows, Row{Line: lineNo, Fields: strings.Split(line, ",")})
	}

	return doc
}

// isBlankLine reports whether a scrubbed, trimmed line carries no content.
// All-comma padding rows produced by spreadsheet exports count as blank.
func isBlankLine(trimmed string) bool {
	return strings.Trim(trimmed, ", ") == ""
}

// KeyValues extracts key/value rows in order: first field is the key, second
// the value, anything beyond the second field is ignored. Blank rows, rows
// without a comma, and rows with an empty key are skipped.
func (s *Section) KeyValues() []KeyValue {
	var out []KeyValue
	for _, row := range s.Rows {
		if row.Blank || len(row.Fields) < 2 {
			continue
		}
		key := strings.TrimSpace(row.Fields[0])
		if key == "" {
			continue
		}
		out = append(out, KeyValue{Key: key, Value: strings.TrimSpace(row.Fields[1]), Line: row.Line})
	}
	return out
}

// Table is the tabular interpretation of a section: a verbatim column list
// and one record per data row.
type Table struct {
	Columns []string
	Records []TableRecord
	Errors  []StructuralError
}

// TableRecord is one data row zipped against the column header.
type TableRecord struct {
	Line   int
	Values map[string]string
}

// Get returns the record's value for a column, or "" when absent.
func (r TableRecord) Get(column string) string {
	return r.Values[column]
}

// Table interprets the section's rows as a header row followed by records.
// The first non-blank row is the header; its column names keep their exact
// casing, empty column names are dropped. A row whose field count does not
// match the header's is malformed: it is recorded as a structural error and
// skipped, and parsing continues. Spreadsheet exports pad headers and rows
// with trailing commas uniformly, so padded files still line up.
func (s *Section) Table() *Table {
	t := &Table{}

	var header []string
	for _, row := range s.Rows {
		if row.Blank {
			continue
		}
		if header == nil {
			header = row.Fields
			for _, col := range header {
				col = strings.TrimSpace(col)
				if col != "" {
					t.Columns = append(t.Columns, col)
				}
			}
			continue
		}

		if len(row.Fields) != len(header) {
			t.Errors = append(t.Errors, StructuralError{
				Line:    row.Line,
				Section: s.Name,
				Message: fmt.Sprintf("row has %d fields, header has %d columns", len(row.Fields), len(header)),
			})
			continue
		}

		rec := TableRecord{Line: row.Line, Values: make(map[string]string, len(t.Columns))}
		for i, col := range header {
			name := strings.TrimSpace(col)
			if name == "" {
				continue
			}
			rec.Values[name] = strings.TrimSpace(row.Fields[i])
		}
		t.Records = append(t.Records, rec)
	}

	return t
}
