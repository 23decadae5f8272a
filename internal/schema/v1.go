package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"sheetnerd/internal/sheet"
)

// Standard IEM V1 [Data] columns, per Illumina's public documentation.
// Anything else is carried as a custom column.
var v1StandardDataColumns = map[string]bool{
	"Lane":           true,
	"Sample_ID":      true,
	"Sample_Name":    true,
	"Sample_Plate":   true,
	"Sample_Well":    true,
	"I7_Index_ID":    true,
	"index":          true,
	"I5_Index_ID":    true,
	"index2":         true,
	"Sample_Project": true,
	"Description":    true,
}

// V1 metadata columns with no V2 slot. They ride in SampleRecord.Meta and
// are dropped (with warnings) on conversion.
var v1MetaColumns = map[string]bool{
	"I7_Index_ID":  true,
	"I5_Index_ID":  true,
	"Sample_Plate": true,
	"Sample_Well":  true,
}

// V1Sheet is the IEM dialect model: IEMFileVersion header, bare cycle
// numbers in [Reads], lowercase index columns in [Data].
type V1Sheet struct {
	header     *Fields
	readLens   []int
	settings   *Fields
	manifests  *Fields
	columns    []string
	records    []SampleRecord
	structural []sheet.StructuralError
}

// V1Spec carries the pieces needed to build a V1Sheet. Columns may be left
// nil, in which case they are computed from the records.
type V1Spec struct {
	Header      *Fields
	ReadLengths []int
	Settings    *Fields
	Manifests   *Fields
	Columns     []string
	Records     []SampleRecord
	Structural  []sheet.StructuralError
}

// BuildV1 constructs an immutable V1 model. Every construction path (parser,
// converter, builder) funnels through here.
func BuildV1(spec V1Spec) *V1Sheet {
	s := &V1Sheet{
		header:     spec.Header,
		readLens:   spec.ReadLengths,
		settings:   spec.Settings,
		manifests:  spec.Manifests,
		columns:    spec.Columns,
		records:    spec.Records,
		structural: spec.Structural,
	}
	if s.header == nil {
		s.header = NewFields()
	}
	if s.settings == nil {
		s.settings = NewFields()
	}
	if s.columns == nil {
		s.columns = computeV1Columns(s.records)
	}
	return s
}

// ParseV1 extracts a V1 model from a scanned document. The only fatal
// condition is a missing or empty [Data] section; everything else is
// recorded as a structural note and parsing continues.
func ParseV1(doc *sheet.Document) (*V1Sheet, error) {
	spec := V1Spec{Header: NewFields(), Settings: NewFields()}
	spec.Structural = append(spec.Structural, doc.Errors...)

	if sec, ok := doc.Section("header"); ok {
		for _, kv := range sec.KeyValues() {
			spec.Header.Set(kv.Key, kv.Value)
		}
	} else {
		spec.Structural = append(spec.Structural, sheet.StructuralError{
			Section: "header", Message: "section missing",
		})
	}

	if sec, ok := doc.Section("reads"); ok {
		for _, row := range sec.Rows {
			if row.Blank {
				continue
			}
			raw := strings.TrimSpace(row.Fields[0])
			n, err := strconv.Atoi(raw)
			if err != nil {
				spec.Structural = append(spec.Structural, sheet.StructuralError{
					Line: row.Line, Section: "reads",
					Message: fmt.Sprintf("skipping non-integer read length %q", raw),
				})
				continue
			}
			spec.ReadLengths = append(spec.ReadLengths, n)
		}
	} else {
		spec.Structural = append(spec.Structural, sheet.StructuralError{
			Section: "reads", Message: "section missing",
		})
	}

	if sec, ok := doc.Section("settings"); ok {
		for _, kv := range sec.KeyValues() {
			spec.Settings.Set(kv.Key, kv.Value)
		}
	} else {
		spec.Structural = append(spec.Structural, sheet.StructuralError{
			Section: "settings", Message: "section missing",
		})
	}

	if sec, ok := doc.Section("manifests"); ok {
		spec.Manifests = NewFields()
		for _, kv := range sec.KeyValues() {
			spec.Manifests.Set(kv.Key, kv.Value)
		}
	}

	sec, ok := doc.Section("data")
	if !ok {
		return nil, fmt.Errorf("[Data]: %w", ErrMissingSection)
	}
	tbl := sec.Table()
	if len(tbl.Columns) == 0 {
		return nil, fmt.Errorf("[Data] has no header row: %w", ErrMissingSection)
	}
	spec.Structural = append(spec.Structural, tbl.Errors...)
	spec.Columns = tbl.Columns
	for _, rec := range tbl.Records {
		spec.Records = append(spec.Records, v1Record(tbl.Columns, rec))
	}

	return BuildV1(spec), nil
}

// v1Record maps a raw table record onto a SampleRecord. V1 keeps empty
// values, so present-but-empty columns stay present in Meta and Custom.
func v1Record(columns []string, rec sheet.TableRecord) SampleRecord {
	out := SampleRecord{
		SampleID:    rec.Get("Sample_ID"),
		Lane:        rec.Get("Lane"),
		Index:       rec.Get("index"),
		Index2:      rec.Get("index2"),
		Project:     rec.Get("Sample_Project"),
		Name:        rec.Get("Sample_Name"),
		Description: rec.Get("Description"),
	}
	for _, col := range columns {
		switch {
		case v1MetaColumns[col]:
			if out.Meta == nil {
				out.Meta = NewFields()
			}
			out.Meta.Set(col, rec.Get(col))
		case !v1StandardDataColumns[col]:
			if out.Custom == nil {
				out.Custom = NewFields()
			}
			out.Custom.Set(col, rec.Get(col))
		}
	}
	return out
}

func (s *V1Sheet) Format() sheet.Format                { return sheet.FormatV1 }
func (s *V1Sheet) Samples() []SampleRecord             { return s.records }
func (s *V1Sheet) Columns() []string                   { return s.columns }
func (s *V1Sheet) ReadLengths() []int                  { return s.readLens }
func (s *V1Sheet) Structural() []sheet.StructuralError { return s.structural }

// HeaderFields returns the [Header] section in file order.
func (s *V1Sheet) HeaderFields() *Fields { return s.header }

// SettingsFields returns the [Settings] section in file order.
func (s *V1Sheet) SettingsFields() *Fields { return s.settings }

// ManifestFields returns the [Manifests] section, or nil when absent.
func (s *V1Sheet) ManifestFields() *Fields { return s.manifests }

// IEMVersion returns the raw IEMFileVersion header value.
func (s *V1Sheet) IEMVersion() string { return s.header.Get("IEMFileVersion") }

// ExperimentName returns the "Experiment Name" header value.
func (s *V1Sheet) ExperimentName() string { return s.header.Get("Experiment Name") }

// Date returns the Date header value.
func (s *V1Sheet) Date() string { return s.header.Get("Date") }

// AdapterRead1 resolves the read-1 adapter: AdapterRead1 first, then the
// legacy Adapter key. AdapterRead2 never falls back to Adapter; a sheet with
// only Adapter configured trims read 1 only.
func (s *V1Sheet) AdapterRead1() string {
	if v := s.settings.Get("AdapterRead1"); v != "" {
		return v
	}
	return s.settings.Get("Adapter")
}

// AdapterRead2 returns the read-2 adapter.
func (s *V1Sheet) AdapterRead2() string { return s.settings.Get("AdapterRead2") }

// Adapters returns the configured adapters as a flat non-empty list.
func (s *V1Sheet) Adapters() []string {
	var out []string
	for _, a := range []string{s.AdapterRead1(), s.AdapterRead2()} {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// ReverseComplement reports the ReverseComplement setting, defaulting to 0
// when absent or non-numeric. 1 means reverse-complement read 2 (Nextera
// Mate Pair); everything else runs with 0.
func (s *V1Sheet) ReverseComplement() int {
	n, err := strconv.Atoi(s.settings.Get("ReverseComplement"))
	if err != nil {
		return 0
	}
	return n
}

// UMILength reads the occasional IndexUMILength header key, 0 when absent
// or non-numeric. V1 sheets have no cycle encoding, so this header is the
// only UMI signal the dialect carries.
func (s *V1Sheet) UMILength() int {
	n, err := strconv.Atoi(s.header.Get("IndexUMILength"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// IndexType derives from the [Data] columns, case-sensitively per the
// dialect's convention.
func (s *V1Sheet) IndexType() IndexType {
	cols := make(map[string]bool, len(s.columns))
	for _, c := range s.columns {
		cols[c] = true
	}
	switch {
	case cols["index2"] || cols["I5_Index_ID"]:
		return IndexDual
	case cols["index"] || cols["I7_Index_ID"]:
		return IndexSingle
	default:
		return IndexNone
	}
}

// computeV1Columns derives a [Data] column list for records built
// programmatically: identity columns always, optional columns only when
// some record carries a value, custom columns sorted at the end. The
// I5_Index_ID column only makes sense alongside index2.
func computeV1Columns(records []SampleRecord) []string {
	var (
		hasPlate, hasWell, hasI7   bool
		hasIndex2, hasI5           bool
		hasProject, hasDescription bool
	)
	for _, r := range records {
		hasIndex2 = hasIndex2 || r.Index2 != ""
		hasProject = hasProject || r.Project != ""
		hasDescription = hasDescription || r.Description != ""
		hasPlate = hasPlate || r.Meta.Get("Sample_Plate") != ""
		hasWell = hasWell || r.Meta.Get("Sample_Well") != ""
		hasI7 = hasI7 || r.Meta.Get("I7_Index_ID") != ""
		hasI5 = hasI5 || r.Meta.Get("I5_Index_ID") != ""
	}

	cols := []string{"Lane", "Sample_ID", "Sample_Name"}
	if hasPlate {
		cols = append(cols, "Sample_Plate")
	}
	if hasWell {
		cols = append(cols, "Sample_Well")
	}
	if hasI7 {
		cols = append(cols, "I7_Index_ID")
	}
	cols = append(cols, "index")
	if hasIndex2 {
		if hasI5 {
			cols = append(cols, "I5_Index_ID")
		}
		cols = append(cols, "index2")
	}
	if hasProject {
		cols = append(cols, "Sample_Project")
	}
	if hasDescription {
		cols = append(cols, "Description")
	}
	return append(cols, extraColumns(records)...)
}

// extraColumns collects every custom column name present on any record,
// sorted for deterministic output.
func extraColumns(records []SampleRecord) []string {
	seen := map[string]bool{}
	for _, r := range records {
		for _, k := range r.Custom.Keys() {
			seen[k] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
