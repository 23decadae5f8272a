// Package validate runs an ordered battery of independent checks against a
// parsed sample sheet, accumulating structured errors and warnings. Checks
// never mutate the model and never short-circuit one another; an empty
// sheet simply leaves the per-sample checks with nothing to do.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sheetnerd/internal/schema"
	"sheetnerd/internal/sheet"
)

// Check codes, stable across releases. Tooling keys off these rather than
// the human-readable messages.
const (
	CodeEmptySamples        = "EMPTY_SAMPLES"
	CodeInvalidIndexChars   = "INVALID_INDEX_CHARS"
	CodeIndexTooShort       = "INDEX_TOO_SHORT"
	CodeIndexTooLong        = "INDEX_TOO_LONG"
	CodeDuplicateIndex      = "DUPLICATE_INDEX"
	CodeDuplicateSampleID   = "DUPLICATE_SAMPLE_ID"
	CodeMissingIndex2       = "MISSING_INDEX2"
	CodeNoAdapters          = "NO_ADAPTERS"
	CodeAdapterMismatch     = "ADAPTER_MISMATCH"
	CodeIndexDistanceTooLow = "INDEX_DISTANCE_TOO_LOW"
)

// rxValidIndex matches legal index sequences: IUPAC ACGT plus N.
var rxValidIndex = regexp.MustCompile(`(?i)^[ACGTN]+$`)

// Severity tags an Issue as blocking or advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding.
type Issue struct {
	Severity Severity
	Code     string
	Message  string
	Context  map[string]string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(i.Severity)), i.Code, i.Message)
}

// Report accumulates findings in check order.
type Report struct {
	Errors   []Issue
	Warnings []Issue
}

func (r *Report) addError(code, message string, ctx map[string]string) {
	r.Errors = append(r.Errors, Issue{SeverityError, code, message, ctx})
}

func (r *Report) addWarning(code, message string, ctx map[string]string) {
	r.Warnings = append(r.Warnings, Issue{SeverityWarning, code, message, ctx})
}

// Passed reports whether the sheet is usable: warnings do not fail a sheet.
func (r *Report) Passed() bool { return len(r.Errors) == 0 }

// Summary renders a one-line verdict with counts, e.g.
// "PASS: 0 error(s), 2 warning(s)".
func (r *Report) Summary() string {
	verdict := "PASS"
	if !r.Passed() {
		verdict = "FAIL"
	}
	return fmt.Sprintf("%s: %d error(s), %d warning(s)", verdict, len(r.Errors), len(r.Warnings))
}

// Options holds the tunable thresholds and the adapter whitelist. The zero
// value is not useful; start from DefaultOptions.
type Options struct {
	// MinIndexLength is the shortest index that passes without a warning.
	// Anything shorter is unusual for modern library preps but not illegal.
	MinIndexLength int
	// MaxIndexLength is the longest plausible index; anything longer is
	// treated as a data error.
	MaxIndexLength int
	// MinIndexDistance is the smallest pairwise Hamming distance tolerated
	// between indexes sharing a lane. Illumina recommends at least 3 for
	// robust demultiplexing.
	MinIndexDistance int
	// KnownAdapters whitelists adapter sequences; anything else draws an
	// ADAPTER_MISMATCH warning. Compared uppercase.
	KnownAdapters []string
}

// DefaultOptions returns the stock thresholds and adapter whitelist.
func DefaultOptions() Options {
	return Options{
		MinIndexLength:   6,
		MaxIndexLength:   24,
		MinIndexDistance: 3,
		KnownAdapters:    DefaultAdapters(),
	}
}

// DefaultAdapters returns the standard Illumina trimming sequences: the
// Nextera transposase adapter, the TruSeq universal prefix and both full
// TruSeq adapters, and the P5/P7 flow-cell oligos.
func DefaultAdapters() []string {
	return []string{
		"CTGTCTCTTATACACATCT",
		"AGATCGGAAGAGC",
		"AGATCGGAAGAGCACACGTCTGAACTCCAGTCA",
		"AGATCGGAAGAGCGTCGTGTAGGGAAAGAGTGT",
		"AATGATACGGCGACCACCGAG",
		"CAAGCAGAAGACGGCATACGAG",
	}
}

// Validator runs the check battery. It is stateless across Validate calls
// and safe for concurrent use.
type Validator struct {
	opts  Options
	known map[string]bool
}

// New builds a Validator from the given options.
func New(opts Options) *Validator {
	known := make(map[string]bool, len(opts.KnownAdapters))
	for _, a := range opts.KnownAdapters {
		known[strings.ToUpper(a)] = true
	}
	return &Validator{opts: opts, known: known}
}

// Validate runs every check against the model, in order. Nothing
// short-circuits: a finding in one check never suppresses another.
func (v *Validator) Validate(m schema.Model) *Report {
	r := &Report{}
	samples := m.Samples()

	v.checkEmpty(samples, r)
	v.checkIndexSequences(m, samples, r)
	v.checkDuplicateIndexes(samples, r)
	v.checkDuplicateSampleIDs(samples, r)
	v.checkMissingIndex2(m, samples, r)
	v.checkAdapters(m, r)
	v.checkIndexDistances(samples, r)

	return r
}

func (v *Validator) checkEmpty(samples []schema.SampleRecord, r *Report) {
	if len(samples) == 0 {
		r.addError(CodeEmptySamples,
			"No samples found in the [Data] / [BCLConvert_Data] section.", nil)
	}
}

// checkIndexSequences validates character set and length of every index
// value. One sequence can draw several findings; none masks another.
func (v *Validator) checkIndexSequences(m schema.Model, samples []schema.SampleRecord, r *Report) {
	field1, field2 := "index", "index2"
	if m.Format() == sheet.FormatV2 {
		field1, field2 = "Index", "Index2"
	}

	for _, s := range samples {
		for _, fv := range []struct{ field, seq string }{{field1, s.Index}, {field2, s.Index2}} {
			if fv.seq == "" {
				continue
			}
			ctx := map[string]string{
				"sample_id": s.SampleID,
				"lane":      s.LaneOrDefault(),
				"field":     fv.field,
			}
			if !rxValidIndex.MatchString(fv.seq) {
				r.addError(CodeInvalidIndexChars,
					fmt.Sprintf("Index '%s' contains non-ACGTN characters.", fv.seq), ctx)
			}
			if len(fv.seq) < v.opts.MinIndexLength {
				r.addWarning(CodeIndexTooShort,
					fmt.Sprintf("Index '%s' is shorter than %d bp; verify this is correct.",
						fv.seq, v.opts.MinIndexLength), ctx)
			}
			if len(fv.seq) > v.opts.MaxIndexLength {
				r.addError(CodeIndexTooLong,
					fmt.Sprintf("Index '%s' is longer than %d bp; likely a data error.",
						fv.seq, v.opts.MaxIndexLength), ctx)
			}
		}
	}
}

// checkDuplicateIndexes flags samples sharing an index (or index pair)
// within a lane. The first holder keeps the key; every later occurrence
// draws its own error naming the conflict.
func (v *Validator) checkDuplicateIndexes(samples []schema.SampleRecord, r *Report) {
	holders := map[string]map[string]string{} // lane -> combined key -> first sample

	for _, s := range samples {
		key := s.Index
		if s.Index2 != "" {
			key = s.Index + "+" + s.Index2
		}
		if key == "" {
			continue
		}
		lane := s.LaneOrDefault()
		bucket := holders[lane]
		if bucket == nil {
			bucket = map[string]string{}
			holders[lane] = bucket
		}
		if first, ok := bucket[key]; ok {
			r.addError(CodeDuplicateIndex,
				fmt.Sprintf("Index '%s' appears more than once in lane '%s'. Conflict between sample '%s' and '%s'.",
					key, lane, first, s.SampleID),
				map[string]string{
					"lane":                lane,
					"index":               key,
					"conflicting_samples": first + ", " + s.SampleID,
				})
			continue
		}
		bucket[key] = s.SampleID
	}
}

func (v *Validator) checkDuplicateSampleIDs(samples []schema.SampleRecord, r *Report) {
	seen := map[string]map[string]bool{} // lane -> sample id

	for _, s := range samples {
		lane := s.LaneOrDefault()
		bucket := seen[lane]
		if bucket == nil {
			bucket = map[string]bool{}
			seen[lane] = bucket
		}
		if bucket[s.SampleID] {
			r.addError(CodeDuplicateSampleID,
				fmt.Sprintf("Sample_ID '%s' appears more than once in lane '%s'.", s.SampleID, lane),
				map[string]string{"lane": lane, "sample_id": s.SampleID})
			continue
		}
		bucket[s.SampleID] = true
	}
}

// checkMissingIndex2 fires on dual-index sheets only: once the sheet
// declares an Index2 column, every sample must fill it or demultiplexing
// assigns the reads to Undetermined.
func (v *Validator) checkMissingIndex2(m schema.Model, samples []schema.SampleRecord, r *Report) {
	if m.IndexType() != schema.IndexDual {
		return
	}
	for _, s := range samples {
		if s.Index2 == "" {
			r.addError(CodeMissingIndex2,
				fmt.Sprintf("Sample '%s' has no Index2 value in a dual-indexed sheet.", s.SampleID),
				map[string]string{"sample_id": s.SampleID, "lane": s.LaneOrDefault()})
		}
	}
}

func (v *Validator) checkAdapters(m schema.Model, r *Report) {
	adapters := m.Adapters()
	if len(adapters) == 0 {
		r.addWarning(CodeNoAdapters,
			"No adapter sequences found in [Settings] / [BCLConvert_Settings]. Adapter trimming will be disabled.", nil)
		return
	}
	for _, a := range adapters {
		if !v.known[strings.ToUpper(a)] {
			r.addWarning(CodeAdapterMismatch,
				fmt.Sprintf("Adapter '%s' is not a standard Illumina adapter sequence. Verify this is correct for your library prep.", a),
				map[string]string{"adapter": a})
		}
	}
}

// checkIndexDistances warns on every unordered pair of samples in a lane
// whose combined index sequences sit closer than the configured Hamming
// minimum. Low-distance pairs demultiplex but bleed reads into each other
// when the sequencer miscalls index cycles.
func (v *Validator) checkIndexDistances(samples []schema.SampleRecord, r *Report) {
	type entry struct {
		sampleID string
		combined string
	}
	buckets := map[string][]entry{}
	var laneOrder []string

	for _, s := range samples {
		if s.Index == "" {
			continue
		}
		combined := strings.ToUpper(s.Index) + strings.ToUpper(s.Index2)
		lane := s.LaneOrDefault()
		if _, ok := buckets[lane]; !ok {
			laneOrder = append(laneOrder, lane)
		}
		buckets[lane] = append(buckets[lane], entry{s.SampleID, combined})
	}

	for _, lane := range laneOrder {
		entries := buckets[lane]
		for i := 0; i < len(entries); i++ {
			for j := i + 1; j < len(entries); j++ {
				d := Hamming(entries[i].combined, entries[j].combined)
				if d >= v.opts.MinIndexDistance {
					continue
				}
				r.addWarning(CodeIndexDistanceTooLow,
					fmt.Sprintf("Indexes for '%s' and '%s' in lane '%s' have a Hamming distance of %d (minimum recommended: %d). This may cause demultiplexing bleed-through.",
						entries[i].sampleID, entries[j].sampleID, lane, d, v.opts.MinIndexDistance),
					map[string]string{
						"lane":         lane,
						"sample_a":     entries[i].sampleID,
						"sample_b":     entries[j].sampleID,
						"index_a":      entries[i].combined,
						"index_b":      entries[j].combined,
						"distance":     strconv.Itoa(d),
						"min_distance": strconv.Itoa(v.opts.MinIndexDistance),
					})
			}
		}
	}
}

// Hamming returns the Hamming distance between two index sequences,
// compared case-insensitively. Unequal lengths compare over the shorter
// sequence, matching how the instrument reads index cycles.
func Hamming(a, b string) int {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	n := min(len(a), len(b))
	d := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}
