package builder

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"sheetnerd/internal/schema"
	"sheetnerd/internal/validate"
)

// Render serializes a model back to sample-sheet text: sections in dialect
// order, one blank line between sections, trailing newline. Parsed models
// keep their column casing and order verbatim; built models carry computed
// columns. Any emitted value with CSV-breaking characters aborts.
func Render(m schema.Model) (string, error) {
	switch s := m.(type) {
	case *schema.V1Sheet:
		return renderV1(s)
	case *schema.V2Sheet:
		return renderV2(s)
	}
	return "", fmt.Errorf("unsupported model type %T", m)
}

func renderV1(s *schema.V1Sheet) (string, error) {
	var lines []string

	lines = append(lines, "[Header]")
	if err := appendKV(&lines, s.HeaderFields(), "IEMFileVersion"); err != nil {
		return "", err
	}

	lines = append(lines, "", "[Reads]")
	for _, n := range s.ReadLengths() {
		lines = append(lines, strconv.Itoa(n))
	}

	if s.ManifestFields().Len() > 0 {
		lines = append(lines, "", "[Manifests]")
		if err := appendKV(&lines, s.ManifestFields(), ""); err != nil {
			return "", err
		}
	}

	lines = append(lines, "", "[Settings]")
	if err := appendKV(&lines, s.SettingsFields(), ""); err != nil {
		return "", err
	}

	lines = append(lines, "", "[Data]")
	if err := appendTable(&lines, s.Columns(), s.Samples()); err != nil {
		return "", err
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n"), nil
}

func renderV2(s *schema.V2Sheet) (string, error) {
	var lines []string

	lines = append(lines, "[Header]")
	if err := appendKV(&lines, s.HeaderFields(), "FileFormatVersion"); err != nil {
		return "", err
	}

	lines = append(lines, "", "[Reads]")
	if err := appendKV(&lines, s.ReadsFields(), ""); err != nil {
		return "", err
	}

	lines = append(lines, "", "[BCLConvert_Settings]")
	if err := appendKV(&lines, s.SettingsFields(), ""); err != nil {
		return "", err
	}

	if s.CloudSettingsFields().Len() > 0 {
		lines = append(lines, "", "[Cloud_Settings]")
		if err := appendKV(&lines, s.CloudSettingsFields(), ""); err != nil {
			return "", err
		}
	}

	lines = append(lines, "", "[BCLConvert_Data]")
	if err := appendTable(&lines, s.Columns(), s.Samples()); err != nil {
		return "", err
	}

	if cols := s.CloudColumns(); len(cols) > 0 {
		lines = append(lines, "", "[Cloud_Data]", strings.Join(cols, ","))
		for _, rec := range s.CloudRecords() {
			row := make([]string, 0, len(cols))
			for _, c := range cols {
				v := rec[c]
				if err := checkField(c, v); err != nil {
					return "", err
				}
				row = append(row, v)
			}
			lines = append(lines, strings.Join(row, ","))
		}
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n"), nil
}

// appendKV emits key,value rows in field order, moving lead to the front
// when present.
func appendKV(dst *[]string, f *schema.Fields, lead string) error {
	keys := f.Keys()
	if lead != "" && f.Has(lead) {
		reordered := []string{lead}
		for _, k := range keys {
			if k != lead {
				reordered = append(reordered, k)
			}
		}
		keys = reordered
	}
	for _, k := range keys {
		v := f.Get(k)
		if err := checkField(k, v); err != nil {
			return err
		}
		*dst = append(*dst, k+","+v)
	}
	return nil
}

func appendTable(dst *[]string, cols []string, records []schema.SampleRecord) error {
	*dst = append(*dst, strings.Join(cols, ","))
	for _, r := range records {
		row := make([]string, 0, len(cols))
		for _, c := range cols {
			v := recordValue(r, c)
			if err := checkField(c, v); err != nil {
				return err
			}
			row = append(row, v)
		}
		*dst = append(*dst, strings.Join(row, ","))
	}
	return nil
}

// recordValue resolves one column for one record, mirroring how the
// parsers populated the record in the first place.
func recordValue(r schema.SampleRecord, col string) string {
	switch col {
	case "Lane":
		return r.LaneOrDefault()
	case "Sample_ID":
		return r.SampleID
	case "Sample_Name":
		return r.Name
	case "index", "Index":
		return r.Index
	case "index2", "Index2":
		return r.Index2
	case "Sample_Project":
		return r.Project
	case "Description":
		return r.Description
	}
	if v, ok := r.Meta.Lookup(col); ok {
		return v
	}
	return r.Custom.Get(col)
}

// Write validates (unless SkipValidation was set), renders, and writes the
// built sheet atomically with 0644 mode.
func (b *Builder) Write(path string) error {
	m, err := b.Build()
	if err != nil {
		return err
	}
	if len(b.samples) == 0 {
		return ErrNoSamples
	}
	if !b.skipValidation {
		if err := validateModel(m); err != nil {
			return err
		}
	}
	text, err := Render(m)
	if err != nil {
		return err
	}
	return writeFile(path, text)
}

// WriteModel validates and writes an already-built model atomically.
func WriteModel(path string, m schema.Model) error {
	if len(m.Samples()) == 0 {
		return ErrNoSamples
	}
	if err := validateModel(m); err != nil {
		return err
	}
	text, err := Render(m)
	if err != nil {
		return err
	}
	return writeFile(path, text)
}

func validateModel(m schema.Model) error {
	report := validate.New(validate.DefaultOptions()).Validate(m)
	if report.Passed() {
		return nil
	}
	var sb strings.Builder
	for _, iss := range report.Errors {
		sb.WriteString("\n  ")
		sb.WriteString(iss.String())
	}
	return fmt.Errorf("%w; fix errors before writing:%s", ErrValidationFailed, sb.String())
}

func writeFile(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
