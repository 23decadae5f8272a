// Package convert rewrites a parsed sample sheet into the other dialect.
// Conversion is lossy in both directions: every field or section the
// target dialect cannot carry is dropped and reported as a Warning, never
// silently discarded.
package convert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sheetnerd/internal/schema"
	"sheetnerd/internal/sheet"
)

// ErrSameFormat is returned when the model already is the target dialect.
var ErrSameFormat = errors.New("sheet is already in the target format")

// Warning records one field or section the conversion had to drop.
type Warning struct {
	Section string
	Field   string
	Message string
}

func (w Warning) String() string {
	if w.Field == "" {
		return fmt.Sprintf("%s: %s", w.Section, w.Message)
	}
	return fmt.Sprintf("%s %s: %s", w.Section, w.Field, w.Message)
}

// Result is a finished conversion: the converted model plus every drop
// warning in encounter order.
type Result struct {
	Model    schema.Model
	Warnings []Warning
}

func (r *Result) warn(section, field, message string) {
	r.Warnings = append(r.Warnings, Warning{Section: section, Field: field, Message: message})
}

// V1 header keys that map onto a V2 slot; everything else present in the
// source header draws a drop warning.
var v1CarriedHeader = map[string]bool{
	"IEMFileVersion":  true, // superseded by FileFormatVersion
	"Experiment Name": true, // becomes RunName
	"Date":            true, // becomes RunDescription
}

// V1 settings keys with a V2 slot.
var v1CarriedSettings = map[string]bool{
	"Adapter":        true,
	"AdapterRead1":   true,
	"AdapterRead2":   true,
	"OverrideCycles": true, // nonstandard in V1, passed through verbatim
}

// V1 data columns the V2 dialect has no slot for.
var v1DroppedDataColumns = map[string]bool{
	"I7_Index_ID":  true,
	"I5_Index_ID":  true,
	"Sample_Plate": true,
	"Sample_Well":  true,
	"Description":  true,
}

// ToV2 converts a V1 model to the BCLConvert dialect.
func ToV2(m schema.Model) (*Result, error) {
	if m.Format() == sheet.FormatV2 {
		return nil, ErrSameFormat
	}
	src, ok := m.(*schema.V1Sheet)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to V2", m)
	}

	res := &Result{}

	header := schema.NewFields()
	header.Set("FileFormatVersion", "2")
	if v := src.ExperimentName(); v != "" {
		header.Set("RunName", v)
	}
	if v := src.Date(); v != "" {
		header.Set("RunDescription", v)
	}
	src.HeaderFields().Each(func(k, _ string) {
		if !v1CarriedHeader[k] {
			res.warn("[Header]", k, "no V2 equivalent, dropped")
		}
	})

	reads := schema.NewFields()
	lengths := src.ReadLengths()
	if len(lengths) > 0 {
		reads.Set("Read1Cycles", strconv.Itoa(lengths[0]))
	}
	if len(lengths) > 1 {
		reads.Set("Read2Cycles", strconv.Itoa(lengths[1]))
	}

	settings := schema.NewFields()
	if v := src.AdapterRead1(); v != "" {
		settings.Set("AdapterRead1", v)
	}
	if v := src.AdapterRead2(); v != "" {
		settings.Set("AdapterRead2", v)
	}
	if v := src.SettingsFields().Get("OverrideCycles"); v != "" {
		settings.Set("OverrideCycles", v)
	} else if oc := synthesizeOverrideCycles(lengths, src.Samples()); oc != "" {
		settings.Set("OverrideCycles", oc)
	}
	src.SettingsFields().Each(func(k, _ string) {
		if !v1CarriedSettings[k] {
			res.warn("[Settings]", k, "no V2 equivalent, dropped")
		}
	})

	var columns []string
	for _, col := range src.Columns() {
		switch {
		case col == "index":
			columns = append(columns, "Index")
		case col == "index2":
			columns = append(columns, "Index2")
		case v1DroppedDataColumns[col]:
			res.warn("[Data]", col, "no V2 equivalent, column dropped")
		default:
			columns = append(columns, col)
		}
	}

	records := make([]schema.SampleRecord, 0, len(src.Samples()))
	for _, s := range src.Samples() {
		records = append(records, schema.SampleRecord{
			SampleID: s.SampleID,
			Lane:     s.Lane,
			Index:    s.Index,
			Index2:   s.Index2,
			Project:  s.Project,
			Name:     s.Name,
			Custom:   s.Custom.Clone(),
		})
	}

	res.Model = schema.BuildV2(schema.V2Spec{
		Header:   header,
		Reads:    reads,
		Settings: settings,
		Columns:  columns,
		Records:  records,
	})
	return res, nil
}

// synthesizeOverrideCycles derives a cycle encoding from the template read
// lengths and the first sample's index widths: Y{r1};I{i1}[;I{i2}][;Y{r2}].
// Without at least one read length and an indexed sample there is nothing
// to derive and the setting stays unset.
func synthesizeOverrideCycles(lengths []int, samples []schema.SampleRecord) string {
	if len(lengths) == 0 || len(samples) == 0 || samples[0].Index == "" {
		return ""
	}
	parts := []string{
		fmt.Sprintf("Y%d", lengths[0]),
		fmt.Sprintf("I%d", len(samples[0].Index)),
	}
	if idx2 := samples[0].Index2; idx2 != "" {
		parts = append(parts, fmt.Sprintf("I%d", len(idx2)))
	}
	if len(lengths) > 1 {
		parts = append(parts, fmt.Sprintf("Y%d", lengths[1]))
	}
	return strings.Join(parts, ";")
}

// V2 header keys that feed a V1 slot; the rest draw drop warnings.
var v2CarriedHeader = map[string]bool{
	"ExperimentName": true, // becomes Experiment Name
	"RunName":        true, // Experiment Name fallback
	"RunDescription": true, // becomes Date
}

// V2 settings keys with a V1 slot.
var v2CarriedSettings = map[string]bool{
	"AdapterRead1": true,
	"AdapterRead2": true,
}

// ToV1 converts a V2 model to the IEM dialect.
func ToV1(m schema.Model) (*Result, error) {
	if m.Format() == sheet.FormatV1 {
		return nil, ErrSameFormat
	}
	src, ok := m.(*schema.V2Sheet)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to V1", m)
	}

	res := &Result{}

	header := schema.NewFields()
	header.Set("IEMFileVersion", "5")
	if v := src.ExperimentName(); v != "" {
		header.Set("Experiment Name", v)
	}
	if v := src.RunDescription(); v != "" {
		header.Set("Date", v)
	}
	header.Set("Workflow", "GenerateFASTQ")
	header.Set("Application", "FASTQ Only")
	src.HeaderFields().Each(func(k, _ string) {
		if !v2CarriedHeader[k] {
			res.warn("[Header]", k, "no V1 equivalent, dropped")
		}
	})

	settings := schema.NewFields()
	if v := src.AdapterRead1(); v != "" {
		settings.Set("AdapterRead1", v)
	}
	if v := src.AdapterRead2(); v != "" {
		settings.Set("AdapterRead2", v)
	}
	src.SettingsFields().Each(func(k, _ string) {
		if !v2CarriedSettings[k] {
			res.warn("[BCLConvert_Settings]", k, "no V1 equivalent, dropped")
		}
	})

	var columns []string
	for _, col := range src.Columns() {
		switch col {
		case "Index":
			columns = append(columns, "index")
		case "Index2":
			columns = append(columns, "index2")
		case "OverrideCycles":
			res.warn("[BCLConvert_Data]", col, "no V1 equivalent, column dropped")
		default:
			columns = append(columns, col)
		}
	}

	records := make([]schema.SampleRecord, 0, len(src.Samples()))
	for _, s := range src.Samples() {
		records = append(records, schema.SampleRecord{
			SampleID:    s.SampleID,
			Lane:        s.Lane,
			Index:       s.Index,
			Index2:      s.Index2,
			Project:     s.Project,
			Name:        s.Name,
			Description: s.Description,
			Custom:      s.Custom.Clone(),
		})
	}

	if src.CloudSettingsFields() != nil {
		res.warn("[Cloud_Settings]", "", "entire section dropped, no V1 equivalent")
	}
	if len(src.CloudColumns()) > 0 || len(src.CloudRecords()) > 0 {
		res.warn("[Cloud_Data]", "", "entire section dropped, no V1 equivalent")
	}

	res.Model = schema.BuildV1(schema.V1Spec{
		Header:      header,
		ReadLengths: append([]int(nil), src.ReadLengths()...),
		Settings:    settings,
		Columns:     columns,
		Records:     records,
	})
	return res, nil
}
