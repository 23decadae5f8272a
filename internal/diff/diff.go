// Package diff compares two parsed sample sheets, in any combination of
// dialects, and reports structured differences: header, reads, and
// settings key changes, samples added or removed, and per-sample field
// changes.
//
// Comparison is dialect-aware. Column names fold to their V2 spellings
// before comparing, and when the two sheets are different dialects the
// V1-only metadata columns are stripped from both sides, so a plain
// format conversion diffs clean.
package diff

import (
	"fmt"
	"strconv"
	"strings"

	"sheetnerd/internal/schema"
	"sheetnerd/internal/sheet"
)

// fieldAliases folds V1 column spellings onto the canonical V2 names.
var fieldAliases = map[string]string{
	"index":          "Index",
	"index2":         "Index2",
	"i7_index_id":    "I7_Index_ID",
	"i5_index_id":    "I5_Index_ID",
	"sample_project": "Sample_Project",
	"sample_name":    "Sample_Name",
}

// crossVariantStrip lists sample fields dropped from both projections when
// the compared sheets are different dialects. These columns exist only in
// V1, so any V1-versus-V2 comparison would report them as removed even
// when the underlying run is identical.
var crossVariantStrip = map[string]bool{
	"Sample_Name":     true,
	"Description":     true,
	"I7_Index_ID":     true,
	"I5_Index_ID":     true,
	"Sample_Plate":    true,
	"Sample_Well":     true,
	"experiment_name": true,
	"run_name":        true,
	"iem_version":     true,
}

func canonicalField(k string) string {
	if c, ok := fieldAliases[k]; ok {
		return c
	}
	return k
}

// SampleRef identifies one sample by its identity key.
type SampleRef struct {
	Lane     string
	SampleID string
}

// HeaderChange is a single key change in the header, reads, or settings
// projection. Old and New are nil when the key is absent on that side;
// absence is distinct from an empty value.
type HeaderChange struct {
	Section string // "header", "reads" or "settings"
	Field   string
	Old     *string
	New     *string
}

func (c HeaderChange) String() string {
	return fmt.Sprintf("[%s] %s: %s -> %s", c.Section, c.Field, renderValue(c.Old), renderValue(c.New))
}

// FieldChange is one changed field on a sample present in both sheets.
type FieldChange struct {
	Field string
	Old   *string
	New   *string
}

// SampleChange collects the field changes of a single sample.
type SampleChange struct {
	Lane     string
	SampleID string
	Fields   []FieldChange
}

func (c SampleChange) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sample '%s' (lane %s):", c.SampleID, c.Lane)
	for _, f := range c.Fields {
		fmt.Fprintf(&b, "\n  %s: %s -> %s", f.Field, renderValue(f.Old), renderValue(f.New))
	}
	return b.String()
}

func renderValue(p *string) string {
	if p == nil {
		return "(absent)"
	}
	return "'" + *p + "'"
}

// Result is a structured comparison of two sheets.
type Result struct {
	OldFormat sheet.Format
	NewFormat sheet.Format

	HeaderChanges  []HeaderChange
	SamplesAdded   []SampleRef
	SamplesRemoved []SampleRef
	SampleChanges  []SampleChange
}

// HasChanges reports whether any difference was found.
func (r *Result) HasChanges() bool {
	return len(r.HeaderChanges) > 0 ||
		len(r.SamplesAdded) > 0 ||
		len(r.SamplesRemoved) > 0 ||
		len(r.SampleChanges) > 0
}

// Summary renders a short per-category count overview.
func (r *Result) Summary() string {
	if !r.HasChanges() {
		return fmt.Sprintf("No differences detected (%s -> %s).", r.OldFormat, r.NewFormat)
	}
	parts := []string{fmt.Sprintf("Diff (%s -> %s):", r.OldFormat, r.NewFormat)}
	if n := len(r.HeaderChanges); n > 0 {
		parts = append(parts, fmt.Sprintf("  %d header/settings change(s)", n))
	}
	if n := len(r.SamplesAdded); n > 0 {
		parts = append(parts, fmt.Sprintf("  %d sample(s) added: %s", n, refIDs(r.SamplesAdded)))
	}
	if n := len(r.SamplesRemoved); n > 0 {
		parts = append(parts, fmt.Sprintf("  %d sample(s) removed: %s", n, refIDs(r.SamplesRemoved)))
	}
	if n := len(r.SampleChanges); n > 0 {
		parts = append(parts, fmt.Sprintf("  %d sample(s) with field changes", n))
	}
	return strings.Join(parts, "\n")
}

// String renders the full report: summary plus every change, in order.
func (r *Result) String() string {
	lines := []string{r.Summary()}
	if len(r.HeaderChanges) > 0 {
		lines = append(lines, "", "Header / Settings:")
		for _, c := range r.HeaderChanges {
			lines = append(lines, "  "+c.String())
		}
	}
	if len(r.SamplesAdded) > 0 {
		lines = append(lines, "", "Added samples:")
		for _, ref := range r.SamplesAdded {
			lines = append(lines, fmt.Sprintf("  + %s (lane %s)", ref.SampleID, ref.Lane))
		}
	}
	if len(r.SamplesRemoved) > 0 {
		lines = append(lines, "", "Removed samples:")
		for _, ref := range r.SamplesRemoved {
			lines = append(lines, fmt.Sprintf("  - %s (lane %s)", ref.SampleID, ref.Lane))
		}
	}
	if len(r.SampleChanges) > 0 {
		lines = append(lines, "", "Changed samples:")
		for _, c := range r.SampleChanges {
			lines = append(lines, "  "+strings.ReplaceAll(c.String(), "\n", "\n  "))
		}
	}
	return strings.Join(lines, "\n")
}

// refIDs lists up to five sample IDs, eliding the rest.
func refIDs(refs []SampleRef) string {
	n := min(len(refs), 5)
	ids := make([]string, 0, n)
	for _, ref := range refs[:n] {
		ids = append(ids, ref.SampleID)
	}
	s := strings.Join(ids, ", ")
	if len(refs) > 5 {
		s += fmt.Sprintf(" and %d more", len(refs)-5)
	}
	return s
}

// Compare diffs two parsed sheets. Iteration order is deterministic and
// follows the new model: keys and samples appear in the new sheet's order
// first, then anything only the old sheet has, in the old sheet's order.
// Comparing a model against itself reports no changes.
func Compare(oldM, newM schema.Model) *Result {
	res := &Result{OldFormat: oldM.Format(), NewFormat: newM.Format()}
	strip := oldM.Format() != newM.Format()

	res.diffFields("header", projectHeader(oldM), projectHeader(newM))
	res.diffFields("reads", projectReads(oldM), projectReads(newM))
	res.diffFields("settings", projectSettings(oldM), projectSettings(newM))
	res.diffSamples(oldM, newM, strip)
	return res
}

func (r *Result) diffFields(section string, oldF, newF *schema.Fields) {
	for _, key := range unionKeys(newF, oldF) {
		ov, ook := oldF.Lookup(key)
		nv, nok := newF.Lookup(key)
		if ook == nok && ov == nv {
			continue
		}
		r.HeaderChanges = append(r.HeaderChanges, HeaderChange{
			Section: section,
			Field:   key,
			Old:     strPtr(ov, ook),
			New:     strPtr(nv, nok),
		})
	}
}

func (r *Result) diffSamples(oldM, newM schema.Model, strip bool) {
	oldKeys, oldByKey := projectSamples(oldM, strip)
	newKeys, newByKey := projectSamples(newM, strip)

	for _, k := range newKeys {
		if _, ok := oldByKey[k]; !ok {
			r.SamplesAdded = append(r.SamplesAdded, k)
		}
	}
	for _, k := range oldKeys {
		if _, ok := newByKey[k]; !ok {
			r.SamplesRemoved = append(r.SamplesRemoved, k)
		}
	}

	for _, k := range newKeys {
		oldRec, ok := oldByKey[k]
		if !ok {
			continue
		}
		newRec := newByKey[k]
		var fields []FieldChange
		for _, f := range unionKeys(newRec, oldRec) {
			ov, ook := oldRec.Lookup(f)
			nv, nok := newRec.Lookup(f)
			if ook == nok && ov == nv {
				continue
			}
			fields = append(fields, FieldChange{Field: f, Old: strPtr(ov, ook), New: strPtr(nv, nok)})
		}
		if len(fields) > 0 {
			r.SampleChanges = append(r.SampleChanges, SampleChange{
				Lane:     k.Lane,
				SampleID: k.SampleID,
				Fields:   fields,
			})
		}
	}
}

// unionKeys returns the new side's keys in order, then old-only keys in
// the old side's order.
func unionKeys(newF, oldF *schema.Fields) []string {
	keys := newF.Keys()
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, k := range oldF.Keys() {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func strPtr(v string, ok bool) *string {
	if !ok {
		return nil
	}
	return &v
}

func projectHeader(m schema.Model) *schema.Fields {
	switch s := m.(type) {
	case *schema.V1Sheet:
		return s.HeaderFields()
	case *schema.V2Sheet:
		return s.HeaderFields()
	}
	return schema.NewFields()
}

// projectReads normalizes both dialects onto Read{i}Cycles keys. V2 reads
// pass through raw, which keeps Index1Cycles and Index2Cycles in play; V1
// positional lengths synthesize the read keys.
func projectReads(m schema.Model) *schema.Fields {
	out := schema.NewFields()
	if s, ok := m.(*schema.V2Sheet); ok {
		s.ReadsFields().Each(out.Set)
		return out
	}
	for i, n := range m.ReadLengths() {
		out.Set(fmt.Sprintf("Read%dCycles", i+1), strconv.Itoa(n))
	}
	return out
}

// projectSettings folds the V1 legacy Adapter key onto AdapterRead1 so the
// same trim configuration compares equal across dialects.
func projectSettings(m schema.Model) *schema.Fields {
	var src *schema.Fields
	switch s := m.(type) {
	case *schema.V1Sheet:
		src = s.SettingsFields()
	case *schema.V2Sheet:
		src = s.SettingsFields()
	}
	out := schema.NewFields()
	src.Each(func(k, v string) {
		if k == "Adapter" {
			if !src.Has("AdapterRead1") {
				out.Set("AdapterRead1", v)
			}
			return
		}
		out.Set(k, v)
	})
	return out
}

func projectSamples(m schema.Model, strip bool) ([]SampleRef, map[SampleRef]*schema.Fields) {
	var order []SampleRef
	byKey := make(map[SampleRef]*schema.Fields)
	for _, s := range m.Samples() {
		key := SampleRef{
			Lane:     strings.TrimSpace(s.LaneOrDefault()),
			SampleID: strings.TrimSpace(s.SampleID),
		}
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = projectRecord(s, strip)
	}
	return order, byKey
}

func projectRecord(s schema.SampleRecord, strip bool) *schema.Fields {
	out := schema.NewFields()
	out.Set("Sample_ID", strings.TrimSpace(s.SampleID))
	out.Set("Lane", strings.TrimSpace(s.LaneOrDefault()))

	put := func(k, v string) {
		k = canonicalField(k)
		if strip && crossVariantStrip[k] {
			return
		}
		out.Set(k, v)
	}
	if s.Index != "" {
		put("Index", s.Index)
	}
	if s.Index2 != "" {
		put("Index2", s.Index2)
	}
	if s.Project != "" {
		put("Sample_Project", s.Project)
	}
	if s.Name != "" {
		put("Sample_Name", s.Name)
	}
	if s.Description != "" {
		put("Description", s.Description)
	}
	s.Meta.Each(put)
	s.Custom.Each(put)
	return out
}
