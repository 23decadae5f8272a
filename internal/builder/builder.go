// Package builder constructs sample sheets programmatically and renders
// any parsed, converted, or built model back to sheet text. Setters chain
// and hold the first error until Build or Write surfaces it.
package builder

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"sheetnerd/internal/schema"
	"sheetnerd/internal/sheet"
)

var (
	// ErrUnsafeValue marks a value that would corrupt the CSV structure.
	ErrUnsafeValue = errors.New("value contains CSV-breaking characters")
	// ErrNoSamples is returned when writing a sheet with zero samples.
	ErrNoSamples = errors.New("sheet has no samples")
	// ErrValidationFailed wraps pre-write validation errors.
	ErrValidationFailed = errors.New("sheet failed validation")
)

// unsafeChars break the line- and comma-delimited sheet structure. Values
// carrying them are rejected outright, never repaired.
const unsafeChars = ",\n\r\"'"

func checkField(field, value string) error {
	if i := strings.IndexAny(value, unsafeChars); i >= 0 {
		return fmt.Errorf("%w: field '%s' contains %q (value %q)", ErrUnsafeValue, field, value[i], value)
	}
	return nil
}

// Sample is one data row handed to the builder. SampleID and Index are
// required; Name defaults to SampleID; Extra carries custom columns.
type Sample struct {
	SampleID    string
	Index       string
	Index2      string
	Lane        string
	Name        string
	Plate       string
	Well        string
	I7IndexID   string
	I5IndexID   string
	Project     string
	Description string
	Extra       map[string]string
}

// record maps the sample onto the schema record shape. The V1-only
// metadata lives in Meta so column computation can see it; the V2 column
// rules simply never look there.
func (s Sample) record() schema.SampleRecord {
	rec := schema.SampleRecord{
		SampleID:    s.SampleID,
		Lane:        s.Lane,
		Index:       s.Index,
		Index2:      s.Index2,
		Project:     s.Project,
		Name:        s.Name,
		Description: s.Description,
	}
	meta := schema.NewFields()
	for _, kv := range [][2]string{
		{"Sample_Plate", s.Plate},
		{"Sample_Well", s.Well},
		{"I7_Index_ID", s.I7IndexID},
		{"I5_Index_ID", s.I5IndexID},
	} {
		if kv[1] != "" {
			meta.Set(kv[0], kv[1])
		}
	}
	if meta.Len() > 0 {
		rec.Meta = meta
	}
	if len(s.Extra) > 0 {
		rec.Custom = schema.NewFields()
		for _, k := range slices.Sorted(maps.Keys(s.Extra)) {
			rec.Custom.Set(k, s.Extra[k])
		}
	}
	return rec
}

// Builder accumulates sheet content for one output dialect. The zero value
// is not usable; call New.
type Builder struct {
	format sheet.Format
	err    error

	runName    string
	runDesc    string
	platform   string
	instrument string
	date       string
	workflow   string
	chemistry  string
	iemVersion string
	header     *schema.Fields // extra header keys, emitted after the known ones

	read1, read2   int
	index1, index2 int

	adapterRead1    string
	adapterRead2    string
	overrideCycles  string
	softwareVersion string
	settings        *schema.Fields // extra settings keys

	samples        []Sample
	skipValidation bool
}

// New returns a builder targeting the given dialect.
func New(format sheet.Format) *Builder {
	return &Builder{
		format:     format,
		iemVersion: "5",
		header:     schema.NewFields(),
		settings:   schema.NewFields(),
	}
}

// Err returns the first error recorded by a chained setter, if any.
func (b *Builder) Err() error { return b.err }

// SkipValidation disables the pre-write validation gate on Write.
func (b *Builder) SkipValidation() *Builder {
	b.skipValidation = true
	return b
}

func (b *Builder) setStr(dst *string, field, value string) *Builder {
	if b.err != nil {
		return b
	}
	if err := checkField(field, value); err != nil {
		b.err = err
		return b
	}
	*dst = value
	return b
}

// SetRunName sets the run name, emitted as RunName in V2 and
// Experiment Name in V1.
func (b *Builder) SetRunName(name string) *Builder {
	return b.setStr(&b.runName, "RunName", name)
}

// SetRunDescription sets the V2 RunDescription. V1 output ignores it.
func (b *Builder) SetRunDescription(desc string) *Builder {
	return b.setStr(&b.runDesc, "RunDescription", desc)
}

// SetInstrumentPlatform sets the V2 InstrumentPlatform. V1 output ignores it.
func (b *Builder) SetInstrumentPlatform(platform string) *Builder {
	return b.setStr(&b.platform, "InstrumentPlatform", platform)
}

// SetHeaderField sets one header key. Known keys route to their dialect
// labels at render time; FileFormatVersion is fixed by the renderer and
// cannot be overridden. Unknown keys pass through verbatim.
func (b *Builder) SetHeaderField(key, value string) *Builder {
	if b.err != nil {
		return b
	}
	if err := checkField("header key '"+key+"'", key); err != nil {
		b.err = err
		return b
	}
	if err := checkField(key, value); err != nil {
		b.err = err
		return b
	}
	switch key {
	case "RunName", "ExperimentName", "Experiment Name":
		b.runName = value
	case "RunDescription":
		b.runDesc = value
	case "InstrumentPlatform":
		b.platform = value
	case "InstrumentType":
		b.instrument = value
	case "Date":
		b.date = value
	case "Workflow":
		b.workflow = value
	case "Chemistry":
		b.chemistry = value
	case "IEMFileVersion":
		b.iemVersion = value
	case "FileFormatVersion":
		// Owned by the V2 renderer.
	default:
		b.header.Set(key, value)
	}
	return b
}

// SetReads sets the template read cycle counts. Zero means absent.
func (b *Builder) SetReads(read1, read2 int) *Builder {
	if b.err != nil {
		return b
	}
	b.read1 = read1
	b.read2 = read2
	return b
}

// SetIndexReads sets the index cycle counts. V1 output ignores them.
func (b *Builder) SetIndexReads(index1, index2 int) *Builder {
	if b.err != nil {
		return b
	}
	b.index1 = index1
	b.index2 = index2
	return b
}

// SetAdapters sets the trim adapters, emitted as AdapterRead1/AdapterRead2
// in V2 and Adapter/AdapterRead2 in V1. Empty values are omitted.
func (b *Builder) SetAdapters(read1, read2 string) *Builder {
	b.setStr(&b.adapterRead1, "AdapterRead1", read1)
	return b.setStr(&b.adapterRead2, "AdapterRead2", read2)
}

// SetOverrideCycles sets the V2 OverrideCycles string.
func (b *Builder) SetOverrideCycles(cycles string) *Builder {
	return b.setStr(&b.overrideCycles, "OverrideCycles", cycles)
}

// SetSoftwareVersion sets the V2 SoftwareVersion setting.
func (b *Builder) SetSoftwareVersion(version string) *Builder {
	return b.setStr(&b.softwareVersion, "SoftwareVersion", version)
}

// SetSetting sets an arbitrary settings key.
func (b *Builder) SetSetting(key, value string) *Builder {
	if b.err != nil {
		return b
	}
	if err := checkField("settings key '"+key+"'", key); err != nil {
		b.err = err
		return b
	}
	if err := checkField(key, value); err != nil {
		b.err = err
		return b
	}
	b.settings.Set(key, value)
	return b
}

// AddSample appends a sample. SampleID and Index must be non-empty; the
// index sequences are uppercased; Name defaults to SampleID; Lane defaults
// to "1". Every value is checked for CSV-breaking characters.
func (b *Builder) AddSample(s Sample) *Builder {
	if b.err != nil {
		return b
	}
	if s.SampleID == "" {
		b.err = errors.New("sample_id must not be empty")
		return b
	}
	if s.Index == "" {
		b.err = fmt.Errorf("index must not be empty for sample '%s'", s.SampleID)
		return b
	}
	for _, kv := range [][2]string{
		{"sample_id", s.SampleID},
		{"index", s.Index},
		{"index2", s.Index2},
		{"lane", s.Lane},
		{"sample_name", s.Name},
		{"sample_plate", s.Plate},
		{"sample_well", s.Well},
		{"i7_index_id", s.I7IndexID},
		{"i5_index_id", s.I5IndexID},
		{"project", s.Project},
		{"description", s.Description},
	} {
		if err := checkField(kv[0], kv[1]); err != nil {
			b.err = err
			return b
		}
	}
	for _, k := range slices.Sorted(maps.Keys(s.Extra)) {
		if err := checkField("extra key '"+k+"'", k); err != nil {
			b.err = err
			return b
		}
		if err := checkField(k, s.Extra[k]); err != nil {
			b.err = err
			return b
		}
	}

	s.Index = strings.ToUpper(s.Index)
	s.Index2 = strings.ToUpper(s.Index2)
	if s.Lane == "" {
		s.Lane = "1"
	}
	if s.Name == "" {
		s.Name = s.SampleID
	}
	if s.Extra != nil {
		s.Extra = maps.Clone(s.Extra)
	}
	b.samples = append(b.samples, s)
	return b
}

// RemoveSample removes samples matching sampleID. An empty lane matches
// any lane. Removing a sample that does not exist is an error.
func (b *Builder) RemoveSample(sampleID, lane string) error {
	if b.err != nil {
		return b.err
	}
	var kept []Sample
	for _, s := range b.samples {
		if s.SampleID == sampleID && (lane == "" || s.Lane == lane) {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == len(b.samples) {
		return sampleNotFound(sampleID, lane)
	}
	b.samples = kept
	return nil
}

// UpdateSample applies field updates to samples matching sampleID (and
// lane, when non-empty). Keys are matched case-insensitively against the
// standard column names; anything else lands in the sample's extra columns.
func (b *Builder) UpdateSample(sampleID, lane string, set map[string]string) error {
	if b.err != nil {
		return b.err
	}
	matched := false
	for i := range b.samples {
		s := &b.samples[i]
		if s.SampleID != sampleID {
			continue
		}
		if lane != "" && s.Lane != lane {
			continue
		}
		matched = true
		for _, k := range slices.Sorted(maps.Keys(set)) {
			v := set[k]
			if err := checkField(k, v); err != nil {
				return err
			}
			switch strings.ToLower(k) {
			case "index":
				s.Index = strings.ToUpper(v)
			case "index2":
				s.Index2 = strings.ToUpper(v)
			case "lane":
				s.Lane = v
			case "sample_name":
				s.Name = v
			case "sample_plate":
				s.Plate = v
			case "sample_well":
				s.Well = v
			case "i7_index_id":
				s.I7IndexID = v
			case "i5_index_id":
				s.I5IndexID = v
			case "sample_project", "project":
				s.Project = v
			case "description":
				s.Description = v
			default:
				if s.Extra == nil {
					s.Extra = map[string]string{}
				}
				s.Extra[k] = v
			}
		}
	}
	if !matched {
		return sampleNotFound(sampleID, lane)
	}
	return nil
}

func sampleNotFound(sampleID, lane string) error {
	if lane != "" {
		return fmt.Errorf("sample '%s' in lane '%s' not found", sampleID, lane)
	}
	return fmt.Errorf("sample '%s' not found", sampleID)
}

// SampleCount returns the number of samples currently held.
func (b *Builder) SampleCount() int { return len(b.samples) }

// SampleIDs returns the held sample IDs in insertion order.
func (b *Builder) SampleIDs() []string {
	out := make([]string, 0, len(b.samples))
	for _, s := range b.samples {
		out = append(out, s.SampleID)
	}
	return out
}

// FromModel loads a parsed model into the builder for editing. The output
// dialect stays whatever New was given, so loading a V1 model into a V2
// builder converts on write. Records with an empty Sample_ID or Index are
// skipped.
func (b *Builder) FromModel(m schema.Model) *Builder {
	if b.err != nil {
		return b
	}
	switch s := m.(type) {
	case *schema.V1Sheet:
		b.loadV1(s)
	case *schema.V2Sheet:
		b.loadV2(s)
	}
	return b
}

func (b *Builder) loadV1(s *schema.V1Sheet) {
	b.runName = s.ExperimentName()
	b.date = s.Date()
	b.workflow = s.HeaderFields().Get("Workflow")
	b.chemistry = s.HeaderFields().Get("Chemistry")
	if v := s.IEMVersion(); v != "" {
		b.iemVersion = v
	}
	if lens := s.ReadLengths(); len(lens) > 0 {
		b.read1 = lens[0]
		if len(lens) > 1 {
			b.read2 = lens[1]
		}
	}
	b.adapterRead1 = s.AdapterRead1()
	b.adapterRead2 = s.AdapterRead2()

	for _, r := range s.Samples() {
		if r.SampleID == "" || r.Index == "" {
			continue
		}
		smp := Sample{
			SampleID:    r.SampleID,
			Index:       r.Index,
			Index2:      r.Index2,
			Lane:        r.LaneOrDefault(),
			Name:        r.Name,
			Plate:       r.Meta.Get("Sample_Plate"),
			Well:        r.Meta.Get("Sample_Well"),
			I7IndexID:   r.Meta.Get("I7_Index_ID"),
			I5IndexID:   r.Meta.Get("I5_Index_ID"),
			Project:     r.Project,
			Description: r.Description,
		}
		if r.Custom.Len() > 0 {
			smp.Extra = map[string]string{}
			r.Custom.Each(func(k, v string) { smp.Extra[k] = v })
		}
		b.samples = append(b.samples, smp)
	}
}

func (b *Builder) loadV2(s *schema.V2Sheet) {
	b.runName = s.ExperimentName()
	b.runDesc = s.RunDescription()
	b.platform = s.InstrumentPlatform()
	b.instrument = s.HeaderFields().Get("InstrumentType")

	s.ReadsFields().Each(func(k, v string) {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return
		}
		switch k {
		case "Read1Cycles":
			b.read1 = n
		case "Read2Cycles":
			b.read2 = n
		case "Index1Cycles":
			b.index1 = n
		case "Index2Cycles":
			b.index2 = n
		}
	})

	b.adapterRead1 = s.AdapterRead1()
	b.adapterRead2 = s.AdapterRead2()
	b.overrideCycles = s.OverrideCycles()
	b.softwareVersion = s.SoftwareVersion()
	s.SettingsFields().Each(func(k, v string) {
		switch k {
		case "AdapterRead1", "AdapterRead2", "OverrideCycles", "SoftwareVersion":
			return
		}
		b.settings.Set(k, v)
	})

	for _, r := range s.Samples() {
		if r.SampleID == "" || r.Index == "" {
			continue
		}
		smp := Sample{
			SampleID: r.SampleID,
			Index:    r.Index,
			Index2:   r.Index2,
			Lane:     r.LaneOrDefault(),
			Project:  r.Project,
		}
		extra := map[string]string{}
		if r.Name != "" {
			// V2 has no first-class name column on output; keep it as an
			// extra column so it survives a load/write cycle.
			extra["Sample_Name"] = r.Name
		}
		r.Meta.Each(func(k, v string) { extra[k] = v })
		r.Custom.Each(func(k, v string) { extra[k] = v })
		if len(extra) > 0 {
			smp.Extra = extra
		}
		b.samples = append(b.samples, smp)
	}
}

// Build assembles the immutable model, surfacing any sticky setter error.
func (b *Builder) Build() (schema.Model, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.format == sheet.FormatV2 {
		return b.buildV2(), nil
	}
	return b.buildV1(), nil
}

func (b *Builder) buildV1() *schema.V1Sheet {
	header := schema.NewFields()
	header.Set("IEMFileVersion", b.iemVersion)
	if b.runName != "" {
		header.Set("Experiment Name", b.runName)
	}
	date := b.date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	header.Set("Date", date)
	workflow := b.workflow
	if workflow == "" {
		workflow = "GenerateFASTQ"
	}
	header.Set("Workflow", workflow)
	if b.chemistry != "" {
		header.Set("Chemistry", b.chemistry)
	}
	b.header.Each(func(k, v string) {
		if !header.Has(k) {
			header.Set(k, v)
		}
	})

	var lens []int
	if b.read1 > 0 {
		lens = append(lens, b.read1)
	}
	if b.read2 > 0 {
		lens = append(lens, b.read2)
	}

	settings := schema.NewFields()
	if b.adapterRead1 != "" {
		settings.Set("Adapter", b.adapterRead1)
	}
	if b.adapterRead2 != "" {
		settings.Set("AdapterRead2", b.adapterRead2)
	}
	b.settings.Each(func(k, v string) {
		if !settings.Has(k) {
			settings.Set(k, v)
		}
	})

	return schema.BuildV1(schema.V1Spec{
		Header:      header,
		ReadLengths: lens,
		Settings:    settings,
		Records:     b.records(),
	})
}

func (b *Builder) buildV2() *schema.V2Sheet {
	header := schema.NewFields()
	header.Set("FileFormatVersion", "2")
	if b.runName != "" {
		header.Set("RunName", b.runName)
	}
	if b.runDesc != "" {
		header.Set("RunDescription", b.runDesc)
	}
	if b.platform != "" {
		header.Set("InstrumentPlatform", b.platform)
	}
	if b.instrument != "" {
		header.Set("InstrumentType", b.instrument)
	}
	b.header.Each(func(k, v string) {
		if !header.Has(k) {
			header.Set(k, v)
		}
	})

	reads := schema.NewFields()
	for _, kv := range []struct {
		key string
		n   int
	}{
		{"Read1Cycles", b.read1},
		{"Read2Cycles", b.read2},
		{"Index1Cycles", b.index1},
		{"Index2Cycles", b.index2},
	} {
		if kv.n > 0 {
			reads.Set(kv.key, strconv.Itoa(kv.n))
		}
	}

	settings := schema.NewFields()
	if b.softwareVersion != "" {
		settings.Set("SoftwareVersion", b.softwareVersion)
	}
	if b.adapterRead1 != "" {
		settings.Set("AdapterRead1", b.adapterRead1)
	}
	if b.adapterRead2 != "" {
		settings.Set("AdapterRead2", b.adapterRead2)
	}
	if b.overrideCycles != "" {
		settings.Set("OverrideCycles", b.overrideCycles)
	}
	b.settings.Each(func(k, v string) {
		if !settings.Has(k) {
			settings.Set(k, v)
		}
	})

	return schema.BuildV2(schema.V2Spec{
		Header:   header,
		Reads:    reads,
		Settings: settings,
		Records:  b.records(),
	})
}

func (b *Builder) records() []schema.SampleRecord {
	out := make([]schema.SampleRecord, 0, len(b.samples))
	for _, s := range b.samples {
		out = append(out, s.record())
	}
	return out
}
