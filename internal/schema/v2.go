package schema

import (
	"fmt"
	"strconv"
	"strings"

	"sheetnerd/internal/sheet"
)

// Required and standard field sets for the V2 BCLConvert dialect, from the
// BCLConvert User Guide.
var (
	v2RequiredDataColumns = []string{"Sample_ID", "Index"}

	v2StandardHeader = map[string]bool{
		"FileFormatVersion":  true,
		"RunName":            true,
		"RunDescription":     true,
		"InstrumentPlatform": true,
		"InstrumentType":     true,
		"ExperimentName":     true,
	}

	v2StandardSettings = map[string]bool{
		"SoftwareVersion":          true,
		"AdapterRead1":             true,
		"AdapterRead2":             true,
		"OverrideCycles":           true,
		"FastqCompressionFormat":   true,
		"BarcodeMismatchesIndex1":  true,
		"BarcodeMismatchesIndex2":  true,
		"CreateFastqForIndexReads": true,
		"NoLaneSplitting":          true,
		"TrimUMI":                  true,
	}

	v2StandardDataColumns = map[string]bool{
		"Lane":           true,
		"Sample_ID":      true,
		"Sample_Name":    true,
		"Sample_Project": true,
		"Index":          true,
		"Index2":         true,
	}
)

// customPrefix marks fields that are custom by declaration rather than by
// absence from the standard sets.
const customPrefix = "Custom_"

// V2Sheet is the BCLConvert dialect model: FileFormatVersion header,
// key-value [Reads], [BCLConvert_*] sections, optional cloud sections.
type V2Sheet struct {
	header        *Fields
	reads         *Fields
	settings      *Fields
	cloudSettings *Fields
	columns       []string
	records       []SampleRecord
	cloudColumns  []string
	cloudRecords  []map[string]string
	structural    []sheet.StructuralError

	customHeader   []string
	customSettings []string
	customData     []string
}

// V2Spec carries the pieces needed to build a V2Sheet. Columns may be left
// nil, in which case they are computed from the records.
type V2Spec struct {
	Header        *Fields
	Reads         *Fields
	Settings      *Fields
	CloudSettings *Fields
	Columns       []string
	Records       []SampleRecord
	CloudColumns  []string
	CloudRecords  []map[string]string
	Structural    []sheet.StructuralError
}

// BuildV2 constructs an immutable V2 model. Custom-field tracking (the
// Custom_ prefix or absence from the standard sets) is derived here so every
// construction path gets it.
func BuildV2(spec V2Spec) *V2Sheet {
	s := &V2Sheet{
		header:        spec.Header,
		reads:         spec.Reads,
		settings:      spec.Settings,
		cloudSettings: spec.CloudSettings,
		columns:       spec.Columns,
		records:       spec.Records,
		cloudColumns:  spec.CloudColumns,
		cloudRecords:  spec.CloudRecords,
		structural:    spec.Structural,
	}
	if s.header == nil {
		s.header = NewFields()
	}
	if s.reads == nil {
		s.reads = NewFields()
	}
	if s.settings == nil {
		s.settings = NewFields()
	}
	if s.columns == nil {
		s.columns = computeV2Columns(s.records)
	}

	for _, k := range s.header.Keys() {
		if strings.HasPrefix(k, customPrefix) || !v2StandardHeader[k] {
			s.customHeader = append(s.customHeader, k)
		}
	}
	for _, k := range s.settings.Keys() {
		if strings.HasPrefix(k, customPrefix) || !v2StandardSettings[k] {
			s.customSettings = append(s.customSettings, k)
		}
	}
	for _, c := range s.columns {
		if c == "OverrideCycles" {
			// Recognized per-sample override, tracked on SampleRecord.Meta.
			continue
		}
		if strings.HasPrefix(c, customPrefix) || !v2StandardDataColumns[c] {
			s.customData = append(s.customData, c)
		}
	}

	return s
}

// ParseV2 extracts a V2 model from a scanned document. Fatal conditions:
// a header without FileFormatVersion, a missing or empty [BCLConvert_Data]
// section, and missing required data columns. Everything else is recorded
// as a structural note and parsing continues.
func ParseV2(doc *sheet.Document) (*V2Sheet, error) {
	spec := V2Spec{Header: NewFields(), Reads: NewFields(), Settings: NewFields()}
	spec.Structural = append(spec.Structural, doc.Errors...)

	if sec, ok := doc.Section("header"); ok {
		for _, kv := range sec.KeyValues() {
			spec.Header.Set(kv.Key, kv.Value)
		}
	}
	if !spec.Header.Has("FileFormatVersion") {
		return nil, fmt.Errorf("[Header] FileFormatVersion: %w", ErrMissingHeader)
	}

	if sec, ok := doc.Section("reads"); ok {
		for _, kv := range sec.KeyValues() {
			if _, err := strconv.Atoi(kv.Value); err != nil {
				spec.Structural = append(spec.Structural, sheet.StructuralError{
					Line: kv.Line, Section: "reads",
					Message: fmt.Sprintf("skipping non-integer cycle value %s=%q", kv.Key, kv.Value),
				})
				continue
			}
			spec.Reads.Set(kv.Key, kv.Value)
		}
	} else {
		spec.Structural = append(spec.Structural, sheet.StructuralError{
			Section: "reads", Message: "section missing",
		})
	}

	if sec, ok := doc.Section("bclconvert_settings"); ok {
		for _, kv := range sec.KeyValues() {
			spec.Settings.Set(kv.Key, kv.Value)
		}
	}

	if sec, ok := doc.Section("cloud_settings"); ok {
		spec.CloudSettings = NewFields()
		for _, kv := range sec.KeyValues() {
			spec.CloudSettings.Set(kv.Key, kv.Value)
		}
	}

	sec, ok := doc.Section("bclconvert_data")
	if !ok {
		return nil, fmt.Errorf("[BCLConvert_Data]: %w", ErrMissingSection)
	}
	tbl := sec.Table()
	if len(tbl.Columns) == 0 {
		return nil, fmt.Errorf("[BCLConvert_Data] has no header row: %w", ErrMissingSection)
	}
	if missing := missingColumns(tbl.Columns, v2RequiredDataColumns); len(missing) > 0 {
		return nil, fmt.Errorf("[BCLConvert_Data] %s: %w", strings.Join(missing, ", "), ErrMissingColumns)
	}
	spec.Structural = append(spec.Structural, tbl.Errors...)
	spec.Columns = tbl.Columns
	for _, rec := range tbl.Records {
		spec.Records = append(spec.Records, v2Record(tbl.Columns, rec))
	}

	if sec, ok := doc.Section("cloud_data"); ok {
		cloud := sec.Table()
		spec.Structural = append(spec.Structural, cloud.Errors...)
		spec.CloudColumns = cloud.Columns
		for _, rec := range cloud.Records {
			row := make(map[string]string, len(cloud.Columns))
			for _, c := range cloud.Columns {
				if v := rec.Get(c); v != "" {
					row[c] = v
				}
			}
			spec.CloudRecords = append(spec.CloudRecords, row)
		}
	}

	return BuildV2(spec), nil
}

func missingColumns(have []string, want []string) []string {
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	var missing []string
	for _, c := range want {
		if !set[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// v2Record maps a raw table record onto a SampleRecord. The dialect drops
// empty values, so only non-empty Meta and Custom entries are kept.
func v2Record(columns []string, rec sheet.TableRecord) SampleRecord {
	out := SampleRecord{
		SampleID: rec.Get("Sample_ID"),
		Lane:     rec.Get("Lane"),
		Index:    rec.Get("Index"),
		Index2:   rec.Get("Index2"),
		Project:  rec.Get("Sample_Project"),
		Name:     rec.Get("Sample_Name"),
	}
	for _, col := range columns {
		v := rec.Get(col)
		if v == "" {
			continue
		}
		switch {
		case col == "OverrideCycles":
			if out.Meta == nil {
				out.Meta = NewFields()
			}
			out.Meta.Set(col, v)
		case !v2StandardDataColumns[col]:
			if out.Custom == nil {
				out.Custom = NewFields()
			}
			out.Custom.Set(col, v)
		}
	}
	return out
}

func (s *V2Sheet) Format() sheet.Format                { return sheet.FormatV2 }
func (s *V2Sheet) Samples() []SampleRecord             { return s.records }
func (s *V2Sheet) Columns() []string                   { return s.columns }
func (s *V2Sheet) Structural() []sheet.StructuralError { return s.structural }

// HeaderFields returns the [Header] section in file order.
func (s *V2Sheet) HeaderFields() *Fields { return s.header }

// ReadsFields returns the [Reads] section in file order, values as the raw
// digit strings from the file.
func (s *V2Sheet) ReadsFields() *Fields { return s.reads }

// SettingsFields returns the [BCLConvert_Settings] section in file order.
func (s *V2Sheet) SettingsFields() *Fields { return s.settings }

// CloudSettingsFields returns the [Cloud_Settings] section, or nil.
func (s *V2Sheet) CloudSettingsFields() *Fields { return s.cloudSettings }

// CloudColumns returns the [Cloud_Data] column names, or nil.
func (s *V2Sheet) CloudColumns() []string { return s.cloudColumns }

// CloudRecords returns the [Cloud_Data] rows keyed by column name.
func (s *V2Sheet) CloudRecords() []map[string]string { return s.cloudRecords }

// FileFormatVersion returns the raw FileFormatVersion header value.
func (s *V2Sheet) FileFormatVersion() string { return s.header.Get("FileFormatVersion") }

// RunName returns the RunName header value.
func (s *V2Sheet) RunName() string { return s.header.Get("RunName") }

// RunDescription returns the RunDescription header value.
func (s *V2Sheet) RunDescription() string { return s.header.Get("RunDescription") }

// InstrumentPlatform returns the InstrumentPlatform header value.
func (s *V2Sheet) InstrumentPlatform() string { return s.header.Get("InstrumentPlatform") }

// ExperimentName prefers ExperimentName and falls back to RunName.
func (s *V2Sheet) ExperimentName() string {
	if v := s.header.Get("ExperimentName"); v != "" {
		return v
	}
	return s.header.Get("RunName")
}

// SoftwareVersion returns the SoftwareVersion setting.
func (s *V2Sheet) SoftwareVersion() string { return s.settings.Get("SoftwareVersion") }

// AdapterRead1 returns the AdapterRead1 setting.
func (s *V2Sheet) AdapterRead1() string { return s.settings.Get("AdapterRead1") }

// AdapterRead2 returns the AdapterRead2 setting.
func (s *V2Sheet) AdapterRead2() string { return s.settings.Get("AdapterRead2") }

// Adapters returns the non-empty values of every settings key containing
// "adapter" (case-insensitive), in settings order. This picks up
// AdapterRead1/AdapterRead2 and custom adapter keys alike.
func (s *V2Sheet) Adapters() []string {
	var out []string
	s.settings.Each(func(k, v string) {
		if strings.Contains(strings.ToLower(k), "adapter") && v != "" {
			out = append(out, v)
		}
	})
	return out
}

// ReadLengths returns the template cycle counts: Read1Cycles then
// Read2Cycles, when present.
func (s *V2Sheet) ReadLengths() []int {
	return s.cycleValues("Read1Cycles", "Read2Cycles")
}

// IndexReadLengths returns Index1Cycles then Index2Cycles, when present.
func (s *V2Sheet) IndexReadLengths() []int {
	return s.cycleValues("Index1Cycles", "Index2Cycles")
}

func (s *V2Sheet) cycleValues(keys ...string) []int {
	var out []int
	for _, k := range keys {
		if v, ok := s.reads.Lookup(k); ok {
			if n, err := strconv.Atoi(v); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// OverrideCycles returns the raw cycle-encoding string from settings.
func (s *V2Sheet) OverrideCycles() string { return s.settings.Get("OverrideCycles") }

// ReadStructure decodes the OverrideCycles string. The structure is always
// recomputed from the raw encoding, never cached.
func (s *V2Sheet) ReadStructure() ReadStructure {
	return ParseOverrideCycles(s.OverrideCycles())
}

// UMILength returns the total UMI bases across all cycle segments.
func (s *V2Sheet) UMILength() int { return s.ReadStructure().UMILength }

// UMILocation returns the segment label carrying the UMI, or "".
func (s *V2Sheet) UMILocation() string { return s.ReadStructure().UMILocation }

// IndexType derives from the [BCLConvert_Data] columns.
func (s *V2Sheet) IndexType() IndexType {
	cols := make(map[string]bool, len(s.columns))
	for _, c := range s.columns {
		cols[c] = true
	}
	switch {
	case cols["Index2"]:
		return IndexDual
	case cols["Index"]:
		return IndexSingle
	default:
		return IndexNone
	}
}

// CustomHeaderFields lists header keys outside the standard set.
func (s *V2Sheet) CustomHeaderFields() []string { return s.customHeader }

// CustomSettingsFields lists settings keys outside the standard set.
func (s *V2Sheet) CustomSettingsFields() []string { return s.customSettings }

// CustomDataColumns lists data columns outside the standard set.
func (s *V2Sheet) CustomDataColumns() []string { return s.customData }

// computeV2Columns derives a [BCLConvert_Data] column list for records
// built programmatically.
func computeV2Columns(records []SampleRecord) []string {
	var hasIndex2, hasProject bool
	for _, r := range records {
		hasIndex2 = hasIndex2 || r.Index2 != ""
		hasProject = hasProject || r.Project != ""
	}
	cols := []string{"Lane", "Sample_ID", "Index"}
	if hasIndex2 {
		cols = append(cols, "Index2")
	}
	if hasProject {
		cols = append(cols, "Sample_Project")
	}
	return append(cols, extraColumns(records)...)
}
