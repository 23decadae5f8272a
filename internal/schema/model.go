// Package schema builds typed models from scanned sample-sheet documents.
// The two dialects (V1 IEM and V2 BCLConvert) get their own model types
// behind one capability interface, so validation, conversion, and diffing
// can stay variant-agnostic.
package schema

import (
	"errors"
	"strings"

	"sheetnerd/internal/sheet"
)

// Sentinel errors for the fatal parse conditions. Everything structural and
// recoverable is recorded on the model instead.
var (
	ErrMissingSection = errors.New("required section missing or empty")
	ErrMissingColumns = errors.New("required data columns missing")
	ErrMissingHeader  = errors.New("required header field missing")
)

// IndexType classifies how a sheet indexes its samples.
type IndexType string

const (
	IndexSingle IndexType = "single"
	IndexDual   IndexType = "dual"
	IndexNone   IndexType = "none"
)

// InstrumentPlatform names the sequencer families that accept V2 sheets.
type InstrumentPlatform string

const (
	PlatformNovaSeq6000    InstrumentPlatform = "NovaSeq6000"
	PlatformNovaSeqXSeries InstrumentPlatform = "NovaSeqXSeries"
	PlatformNextSeq1k2k    InstrumentPlatform = "NextSeq1000/2000"
	PlatformNextSeq550     InstrumentPlatform = "NextSeq550"
	PlatformMiSeq          InstrumentPlatform = "MiSeq"
	PlatformHiSeqX         InstrumentPlatform = "HiSeqX"
)

// KnownPlatforms lists the supported instrument platforms.
func KnownPlatforms() []InstrumentPlatform {
	return []InstrumentPlatform{
		PlatformNovaSeq6000,
		PlatformNovaSeqXSeries,
		PlatformNextSeq1k2k,
		PlatformNextSeq550,
		PlatformMiSeq,
		PlatformHiSeqX,
	}
}

// Model is the capability set shared by both sheet dialects. Engines depend
// on this interface and reach for the concrete types only where the dialects
// genuinely differ (conversion, serialization, diff projection).
type Model interface {
	// Format reports which dialect the model was built from.
	Format() sheet.Format
	// Samples returns every data record in file order, including records
	// that share a Sample_ID. Duplicate detection belongs to validation.
	Samples() []SampleRecord
	// IndexType derives single/dual/none from the data columns.
	IndexType() IndexType
	// Adapters returns the configured adapter sequences, non-empty, in
	// settings order.
	Adapters() []string
	// ExperimentName returns the run's human-readable name, or "".
	ExperimentName() string
	// ReadLengths returns the template read cycle counts in order.
	ReadLengths() []int
	// Columns returns the data section's column names verbatim.
	Columns() []string
	// Structural returns the defects recorded while scanning and parsing.
	Structural() []sheet.StructuralError
}

// SampleRecord is one row of the data section, normalized across dialects.
// Meta holds dialect-standard metadata columns that the other dialect has no
// slot for (V1: I7_Index_ID, I5_Index_ID, Sample_Plate, Sample_Well; V2:
// per-sample OverrideCycles). Custom holds non-standard columns.
type SampleRecord struct {
	SampleID    string
	Lane        string
	Index       string
	Index2      string
	Project     string
	Name        string
	Description string
	Meta        *Fields
	Custom      *Fields
}

// LaneOrDefault returns the record's lane, or "1" when the sheet carries no
// lane information. Validation and diffing group by this value.
func (r SampleRecord) LaneOrDefault() string {
	if lane := strings.TrimSpace(r.Lane); lane != "" {
		return lane
	}
	return "1"
}
