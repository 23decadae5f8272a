package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetnerd/internal/schema"
)

// v1Model builds a V1 sheet around the given records with a known adapter
// configured, so adapter warnings stay out of unrelated tests.
func v1Model(records ...schema.SampleRecord) schema.Model {
	return schema.BuildV1(schema.V1Spec{
		Settings: schema.FieldsFrom("AdapterRead1", "CTGTCTCTTATACACATCT"),
		Records:  records,
	})
}

func v2Model(records ...schema.SampleRecord) schema.Model {
	return schema.BuildV2(schema.V2Spec{
		Header:   schema.FieldsFrom("FileFormatVersion", "2"),
		Settings: schema.FieldsFrom("AdapterRead1", "CTGTCTCTTATACACATCT"),
		Records:  records,
	})
}

func codes(issues []Issue) []string {
	var out []string
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestValidate_CleanSheet(t *testing.T) {
	m := v2Model(
		schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "TAAGGCGA", Index2: "TAGATCGC"},
		schema.SampleRecord{SampleID: "S2", Lane: "1", Index: "CGTACTAG", Index2: "CTCTCTAT"},
	)
	r := New(DefaultOptions()).Validate(m)

	assert.True(t, r.Passed())
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
	assert.Equal(t, "PASS: 0 error(s), 0 warning(s)", r.Summary())
}

func TestValidate_EmptySamples(t *testing.T) {
	r := New(DefaultOptions()).Validate(schema.BuildV1(schema.V1Spec{}))

	require.Len(t, r.Errors, 1, "an empty sheet draws exactly one error")
	assert.Equal(t, CodeEmptySamples, r.Errors[0].Code)
	assert.False(t, r.Passed())
	assert.Contains(t, codes(r.Warnings), CodeNoAdapters,
		"sheet-level checks still run against an empty sheet")
}

func TestValidate_IndexSequences(t *testing.T) {
	t.Run("invalid characters", func(t *testing.T) {
		m := v1Model(schema.SampleRecord{SampleID: "S1", Index: "ACGTXZ"})
		r := New(DefaultOptions()).Validate(m)

		require.Equal(t, []string{CodeInvalidIndexChars}, codes(r.Errors))
		assert.Equal(t, "index", r.Errors[0].Context["field"])
		assert.Equal(t, "1", r.Errors[0].Context["lane"])
	})

	t.Run("lowercase and N are legal", func(t *testing.T) {
		m := v1Model(schema.SampleRecord{SampleID: "S1", Index: "acgtnAC"})
		r := New(DefaultOptions()).Validate(m)
		assert.Empty(t, r.Errors)
	})

	t.Run("short index warns", func(t *testing.T) {
		m := v1Model(schema.SampleRecord{SampleID: "S1", Index: "ACGT"})
		r := New(DefaultOptions()).Validate(m)

		assert.Empty(t, r.Errors)
		require.Equal(t, []string{CodeIndexTooShort}, codes(r.Warnings))
		assert.True(t, r.Passed(), "warnings never fail a sheet")
	})

	t.Run("long index errors", func(t *testing.T) {
		m := v1Model(schema.SampleRecord{SampleID: "S1", Index: strings.Repeat("A", 25)})
		r := New(DefaultOptions()).Validate(m)
		assert.Contains(t, codes(r.Errors), CodeIndexTooLong)
	})

	t.Run("index2 is checked too", func(t *testing.T) {
		m := v2Model(schema.SampleRecord{SampleID: "S1", Index: "TAAGGCGA", Index2: "BADCHAR!"})
		r := New(DefaultOptions()).Validate(m)

		require.NotEmpty(t, r.Errors)
		assert.Equal(t, "Index2", r.Errors[0].Context["field"], "V2 sheets report the V2 column name")
	})
}

func TestValidate_DuplicateIndex(t *testing.T) {
	t.Run("one error per extra occurrence", func(t *testing.T) {
		m := v1Model(
			schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "TAAGGCGA"},
			schema.SampleRecord{SampleID: "S2", Lane: "1", Index: "TAAGGCGA"},
			schema.SampleRecord{SampleID: "S3", Lane: "1", Index: "TAAGGCGA"},
		)
		r := New(DefaultOptions()).Validate(m)

		dups := 0
		for _, e := range r.Errors {
			if e.Code == CodeDuplicateIndex {
				dups++
				assert.Contains(t, e.Context["conflicting_samples"], "S1", "first holder is always named")
			}
		}
		assert.Equal(t, 2, dups)
	})

	t.Run("different lanes do not conflict", func(t *testing.T) {
		m := v1Model(
			schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "TAAGGCGA"},
			schema.SampleRecord{SampleID: "S2", Lane: "2", Index: "TAAGGCGA"},
		)
		r := New(DefaultOptions()).Validate(m)
		assert.NotContains(t, codes(r.Errors), CodeDuplicateIndex)
	})

	t.Run("index pair forms the key", func(t *testing.T) {
		m := v2Model(
			schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "TAAGGCGA", Index2: "TAGATCGC"},
			schema.SampleRecord{SampleID: "S2", Lane: "1", Index: "TAAGGCGA", Index2: "CTCTCTAT"},
		)
		r := New(DefaultOptions()).Validate(m)
		assert.NotContains(t, codes(r.Errors), CodeDuplicateIndex,
			"differing index2 distinguishes the pair")
	})

	t.Run("missing lane groups as lane 1", func(t *testing.T) {
		m := v1Model(
			schema.SampleRecord{SampleID: "S1", Index: "TAAGGCGA"},
			schema.SampleRecord{SampleID: "S2", Lane: "1", Index: "TAAGGCGA"},
		)
		r := New(DefaultOptions()).Validate(m)
		assert.Contains(t, codes(r.Errors), CodeDuplicateIndex)
	})
}

func TestValidate_DuplicateSampleID(t *testing.T) {
	m := v1Model(
		schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "TAAGGCGA"},
		schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "CGTACTAG"},
		schema.SampleRecord{SampleID: "S1", Lane: "2", Index: "TCCTGAGC"},
	)
	r := New(DefaultOptions()).Validate(m)

	ids := 0
	for _, e := range r.Errors {
		if e.Code == CodeDuplicateSampleID {
			ids++
			assert.Equal(t, "1", e.Context["lane"], "the lane 2 copy is legal")
		}
	}
	assert.Equal(t, 1, ids)
}

func TestValidate_MissingIndex2(t *testing.T) {
	t.Run("dual sheet with a gap", func(t *testing.T) {
		m := v2Model(
			schema.SampleRecord{SampleID: "S1", Index: "TAAGGCGA", Index2: "TAGATCGC"},
			schema.SampleRecord{SampleID: "S2", Index: "CGTACTAG"},
		)
		require.Equal(t, schema.IndexDual, m.IndexType())

		r := New(DefaultOptions()).Validate(m)
		require.Contains(t, codes(r.Errors), CodeMissingIndex2)
		for _, e := range r.Errors {
			if e.Code == CodeMissingIndex2 {
				assert.Equal(t, "S2", e.Context["sample_id"])
			}
		}
	})

	t.Run("single-index sheet never fires", func(t *testing.T) {
		m := v2Model(schema.SampleRecord{SampleID: "S1", Index: "TAAGGCGA"})
		r := New(DefaultOptions()).Validate(m)
		assert.NotContains(t, codes(r.Errors), CodeMissingIndex2)
	})
}

func TestValidate_Adapters(t *testing.T) {
	t.Run("no adapters configured", func(t *testing.T) {
		m := schema.BuildV1(schema.V1Spec{Records: []schema.SampleRecord{
			{SampleID: "S1", Index: "TAAGGCGA"},
		}})
		r := New(DefaultOptions()).Validate(m)
		assert.Contains(t, codes(r.Warnings), CodeNoAdapters)
	})

	t.Run("unknown adapter", func(t *testing.T) {
		m := schema.BuildV1(schema.V1Spec{
			Settings: schema.FieldsFrom("AdapterRead1", "AAAACCCCGGGG"),
			Records:  []schema.SampleRecord{{SampleID: "S1", Index: "TAAGGCGA"}},
		})
		r := New(DefaultOptions()).Validate(m)

		require.Contains(t, codes(r.Warnings), CodeAdapterMismatch)
		for _, w := range r.Warnings {
			if w.Code == CodeAdapterMismatch {
				assert.Equal(t, "AAAACCCCGGGG", w.Context["adapter"])
			}
		}
	})

	t.Run("whitelist compares uppercase", func(t *testing.T) {
		m := schema.BuildV1(schema.V1Spec{
			Settings: schema.FieldsFrom("AdapterRead1", "ctgtctcttatacacatct"),
			Records:  []schema.SampleRecord{{SampleID: "S1", Index: "TAAGGCGA"}},
		})
		r := New(DefaultOptions()).Validate(m)
		assert.NotContains(t, codes(r.Warnings), CodeAdapterMismatch)
	})
}

func TestValidate_IndexDistance(t *testing.T) {
	t.Run("close pair warns exactly once", func(t *testing.T) {
		m := v1Model(
			schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "AAAAAAAAAA"},
			schema.SampleRecord{SampleID: "S2", Lane: "1", Index: "AAAAAAAAAT"},
		)
		r := New(DefaultOptions()).Validate(m)

		var hits []Issue
		for _, w := range r.Warnings {
			if w.Code == CodeIndexDistanceTooLow {
				hits = append(hits, w)
			}
		}
		require.Len(t, hits, 1)
		assert.Equal(t, "S1", hits[0].Context["sample_a"])
		assert.Equal(t, "S2", hits[0].Context["sample_b"])
		assert.Equal(t, "1", hits[0].Context["lane"])
		assert.Equal(t, "1", hits[0].Context["distance"])
	})

	t.Run("index2 extends the compared key", func(t *testing.T) {
		m := v2Model(
			schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "TAAGGCGA", Index2: "AAAAAAAA"},
			schema.SampleRecord{SampleID: "S2", Lane: "1", Index: "TAAGGCGA", Index2: "TTTTCCCC"},
		)
		r := New(DefaultOptions()).Validate(m)
		assert.NotContains(t, codes(r.Warnings), CodeIndexDistanceTooLow,
			"identical index1 is fine when index2 separates the pair")
	})

	t.Run("lanes are independent", func(t *testing.T) {
		m := v1Model(
			schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "AAAAAAAAAA"},
			schema.SampleRecord{SampleID: "S2", Lane: "2", Index: "AAAAAAAAAA"},
		)
		r := New(DefaultOptions()).Validate(m)
		assert.NotContains(t, codes(r.Warnings), CodeIndexDistanceTooLow)
	})

	t.Run("three-way collision warns per pair", func(t *testing.T) {
		m := v1Model(
			schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "AAAAAAAAAA"},
			schema.SampleRecord{SampleID: "S2", Lane: "1", Index: "AAAAAAAAAT"},
			schema.SampleRecord{SampleID: "S3", Lane: "1", Index: "AAAAAAAATT"},
		)
		r := New(DefaultOptions()).Validate(m)

		hits := 0
		for _, w := range r.Warnings {
			if w.Code == CodeIndexDistanceTooLow {
				hits++
			}
		}
		assert.Equal(t, 3, hits)
	})
}

func TestValidate_ChecksDoNotMaskEachOther(t *testing.T) {
	m := v1Model(
		schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "ACG!"},
		schema.SampleRecord{SampleID: "S1", Lane: "1", Index: "ACG!"},
	)
	r := New(DefaultOptions()).Validate(m)

	got := codes(r.Errors)
	assert.Contains(t, got, CodeInvalidIndexChars)
	assert.Contains(t, got, CodeDuplicateIndex)
	assert.Contains(t, got, CodeDuplicateSampleID)
	assert.Contains(t, codes(r.Warnings), CodeIndexTooShort)
}

func TestHamming(t *testing.T) {
	assert.Equal(t, 0, Hamming("ATTACTCG", "ATTACTCG"))
	assert.Equal(t, 1, Hamming("ATTACTCG", "ATTACTCA"))
	assert.Equal(t, 6, Hamming("ATTACTCG", "GCTAGCTA"))

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, Hamming("ACGTACGT", "TGCATGCA"), Hamming("TGCATGCA", "ACGTACGT"))
	})

	t.Run("compares over the shorter length", func(t *testing.T) {
		assert.Equal(t, 0, Hamming("ACGTACGT", "ACGT"))
		assert.Equal(t, 1, Hamming("TCGT", "ACGTACGT"))
	})

	t.Run("case-insensitive", func(t *testing.T) {
		assert.Equal(t, 0, Hamming("acgt", "ACGT"))
	})
}

func TestReport_Summary(t *testing.T) {
	r := &Report{}
	r.addWarning(CodeNoAdapters, "no adapters", nil)
	assert.Equal(t, "PASS: 0 error(s), 1 warning(s)", r.Summary())
	assert.True(t, r.Passed())

	r.addError(CodeEmptySamples, "empty", nil)
	assert.Equal(t, "FAIL: 1 error(s), 1 warning(s)", r.Summary())
	assert.False(t, r.Passed())
}

func TestIssue_String(t *testing.T) {
	i := Issue{Severity: SeverityError, Code: CodeEmptySamples, Message: "No samples found."}
	assert.Equal(t, "[ERROR] EMPTY_SAMPLES: No samples found.", i.String())
}
