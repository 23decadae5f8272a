package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetnerd/internal/schema"
	"sheetnerd/internal/sheet"
)

func TestBuilder_BuildV2(t *testing.T) {
	b := New(sheet.FormatV2).
		SetRunName("Run001").
		SetRunDescription("validation run").
		SetInstrumentPlatform("NovaSeqXSeries").
		SetHeaderField("InstrumentType", "NovaSeqX").
		SetReads(151, 151).
		SetIndexReads(10, 10).
		SetAdapters("CTGTCTCTTATACACATCT", "AGATCGGAAGAGC").
		SetOverrideCycles("Y151;I10;I10;Y151").
		SetSoftwareVersion("4.1.7").
		SetSetting("BarcodeMismatchesIndex1", "1").
		AddSample(Sample{SampleID: "S1", Index: "attactcgat", Index2: "tatagcctgt", Project: "ProjX", Extra: map[string]string{"LibraryPrep": "NexteraXT"}}).
		AddSample(Sample{SampleID: "S2", Index: "GGGGCCCCAA", Index2: "AACCGGTTAA", Project: "ProjX"})

	m, err := b.Build()
	require.NoError(t, err)
	v2, ok := m.(*schema.V2Sheet)
	require.True(t, ok)

	assert.Equal(t, "2", v2.FileFormatVersion())
	assert.Equal(t, "Run001", v2.RunName())
	assert.Equal(t, "validation run", v2.RunDescription())
	assert.Equal(t, "NovaSeqXSeries", v2.InstrumentPlatform())
	assert.Equal(t, "NovaSeqX", v2.HeaderFields().Get("InstrumentType"))

	assert.Equal(t, []int{151, 151}, v2.ReadLengths())
	assert.Equal(t, []int{10, 10}, v2.IndexReadLengths())

	assert.Equal(t, "4.1.7", v2.SoftwareVersion())
	assert.Equal(t, "Y151;I10;I10;Y151", v2.OverrideCycles())
	assert.Equal(t, "1", v2.SettingsFields().Get("BarcodeMismatchesIndex1"))

	assert.Equal(t, []string{"Lane", "Sample_ID", "Index", "Index2", "Sample_Project", "LibraryPrep"}, v2.Columns())

	recs := v2.Samples()
	require.Len(t, recs, 2)
	assert.Equal(t, "ATTACTCGAT", recs[0].Index, "index sequences are uppercased")
	assert.Equal(t, "TATAGCCTGT", recs[0].Index2)
	assert.Equal(t, "1", recs[0].Lane)
	assert.Equal(t, "NexteraXT", recs[0].Custom.Get("LibraryPrep"))
}

func TestBuilder_BuildV1(t *testing.T) {
	b := New(sheet.FormatV1).
		SetRunName("MiSeq Amplicon Run").
		SetHeaderField("Chemistry", "Amplicon").
		SetReads(151, 151).
		SetAdapters("CTGTCTCTTATACACATCT", "").
		AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC", Plate: "Plate1", Well: "A01"})

	m, err := b.Build()
	require.NoError(t, err)
	v1, ok := m.(*schema.V1Sheet)
	require.True(t, ok)

	h := v1.HeaderFields()
	assert.Equal(t, "5", h.Get("IEMFileVersion"))
	assert.Equal(t, "MiSeq Amplicon Run", h.Get("Experiment Name"))
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, h.Get("Date"), "date defaults to today")
	assert.Equal(t, "GenerateFASTQ", h.Get("Workflow"), "workflow has a default")
	assert.Equal(t, "Amplicon", h.Get("Chemistry"))

	assert.Equal(t, "CTGTCTCTTATACACATCT", v1.SettingsFields().Get("Adapter"),
		"the v1 settings key is Adapter, not AdapterRead1")
	assert.False(t, v1.SettingsFields().Has("AdapterRead1"))

	assert.Equal(t, []string{"Lane", "Sample_ID", "Sample_Name", "Sample_Plate", "Sample_Well", "index"}, v1.Columns())
	require.Len(t, v1.Samples(), 1)
	assert.Equal(t, "S1", v1.Samples()[0].Name, "sample name defaults to the ID")
}

func TestBuilder_HeaderFieldRouting(t *testing.T) {
	b := New(sheet.FormatV1).
		SetHeaderField("Date", "2024-02-02").
		SetHeaderField("IEMFileVersion", "4").
		SetHeaderField("Module", "GenerateFASTQ - 3.0.1").
		AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC"})

	m, err := b.Build()
	require.NoError(t, err)
	h := m.(*schema.V1Sheet).HeaderFields()

	assert.Equal(t, "2024-02-02", h.Get("Date"))
	assert.Equal(t, "4", h.Get("IEMFileVersion"))
	assert.Equal(t, "GenerateFASTQ - 3.0.1", h.Get("Module"))

	count := 0
	h.Each(func(k, _ string) {
		if k == "Date" {
			count++
		}
	})
	assert.Equal(t, 1, count, "routed keys must not duplicate")
}

func TestBuilder_FileFormatVersionIsFixed(t *testing.T) {
	b := New(sheet.FormatV2).
		SetHeaderField("FileFormatVersion", "99").
		AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC"})

	m, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "2", m.(*schema.V2Sheet).FileFormatVersion())
}

func TestBuilder_StickyError(t *testing.T) {
	b := New(sheet.FormatV2).
		SetRunName("bad,name").
		AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC"})

	assert.ErrorIs(t, b.Err(), ErrUnsafeValue)
	assert.Equal(t, 0, b.SampleCount(), "chained calls after the error are no-ops")

	_, err := b.Build()
	require.ErrorIs(t, err, ErrUnsafeValue)
	assert.Contains(t, err.Error(), "RunName")
}

func TestAddSample_Rejections(t *testing.T) {
	t.Run("empty sample id", func(t *testing.T) {
		_, err := New(sheet.FormatV2).AddSample(Sample{Index: "ACGT"}).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sample_id")
	})

	t.Run("empty index", func(t *testing.T) {
		_, err := New(sheet.FormatV2).AddSample(Sample{SampleID: "S1"}).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "S1")
	})

	t.Run("unsafe value", func(t *testing.T) {
		_, err := New(sheet.FormatV2).
			AddSample(Sample{SampleID: "S1", Index: "ACGT", Description: "a\"b"}).
			Build()
		require.ErrorIs(t, err, ErrUnsafeValue)
		assert.Contains(t, err.Error(), "description")
	})

	t.Run("unsafe extra column", func(t *testing.T) {
		_, err := New(sheet.FormatV2).
			AddSample(Sample{SampleID: "S1", Index: "ACGT", Extra: map[string]string{"Note": "x,y"}}).
			Build()
		require.ErrorIs(t, err, ErrUnsafeValue)
	})
}

func TestRemoveSample(t *testing.T) {
	newBuilder := func() *Builder {
		return New(sheet.FormatV2).
			AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC", Lane: "1"}).
			AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC", Lane: "2"}).
			AddSample(Sample{SampleID: "S2", Index: "GGGGCCCCAA", Lane: "1"})
	}

	t.Run("by id and lane", func(t *testing.T) {
		b := newBuilder()
		require.NoError(t, b.RemoveSample("S1", "2"))
		assert.Equal(t, []string{"S1", "S2"}, b.SampleIDs())
	})

	t.Run("empty lane matches all lanes", func(t *testing.T) {
		b := newBuilder()
		require.NoError(t, b.RemoveSample("S1", ""))
		assert.Equal(t, []string{"S2"}, b.SampleIDs())
	})

	t.Run("not found", func(t *testing.T) {
		b := newBuilder()
		err := b.RemoveSample("S9", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "S9")

		err = b.RemoveSample("S1", "9")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lane '9'")
	})
}

func TestUpdateSample(t *testing.T) {
	t.Run("standard fields", func(t *testing.T) {
		b := New(sheet.FormatV2).
			AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC", Project: "Old"})
		require.NoError(t, b.UpdateSample("S1", "", map[string]string{
			"index":          "ttttggggcc",
			"Sample_Project": "New",
		}))

		m, err := b.Build()
		require.NoError(t, err)
		rec := m.Samples()[0]
		assert.Equal(t, "TTTTGGGGCC", rec.Index, "updated indexes are uppercased")
		assert.Equal(t, "New", rec.Project)
	})

	t.Run("unknown key becomes extra column", func(t *testing.T) {
		b := New(sheet.FormatV2).
			AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC"})
		require.NoError(t, b.UpdateSample("S1", "", map[string]string{"LibraryPrep": "TruSeq"}))

		m, err := b.Build()
		require.NoError(t, err)
		assert.Contains(t, m.Columns(), "LibraryPrep")
	})

	t.Run("lane filter", func(t *testing.T) {
		b := New(sheet.FormatV2).
			AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC", Lane: "1"}).
			AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC", Lane: "2"})
		require.NoError(t, b.UpdateSample("S1", "2", map[string]string{"index": "GGGGCCCCAA"}))

		m, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, "ACGTACGTAC", m.Samples()[0].Index)
		assert.Equal(t, "GGGGCCCCAA", m.Samples()[1].Index)
	})

	t.Run("not found", func(t *testing.T) {
		b := New(sheet.FormatV2).AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC"})
		assert.Error(t, b.UpdateSample("S9", "", map[string]string{"index": "A"}))
	})

	t.Run("unsafe value rejected", func(t *testing.T) {
		b := New(sheet.FormatV2).AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC"})
		err := b.UpdateSample("S1", "", map[string]string{"description": "x\ny"})
		assert.ErrorIs(t, err, ErrUnsafeValue)
	})
}

const builderV1Fixture = `[Header]
IEMFileVersion,4
Experiment Name,RT
Date,2023-11-02

[Reads]
76
76

[Settings]
ReverseComplement,0
Adapter,CTGTCTCTTATACACATCT

[Data]
Lane,Sample_ID,Sample_Name,I7_Index_ID,index,Sample_Project,LibraryPrep
1,S1,Alpha,D701,ACGTACGTAC,ProjA,NexteraXT
2,S2,Beta,D702,GGGGCCCCAA,ProjA,NexteraXT
`

func TestFromModel_V1(t *testing.T) {
	m, err := schema.Parse(builderV1Fixture)
	require.NoError(t, err)

	b := New(sheet.FormatV1).FromModel(m)
	assert.Equal(t, 2, b.SampleCount())

	out, err := b.Build()
	require.NoError(t, err)
	v1 := out.(*schema.V1Sheet)

	assert.Equal(t, "4", v1.IEMVersion())
	assert.Equal(t, "RT", v1.ExperimentName())
	assert.Equal(t, "2023-11-02", v1.Date())
	assert.Equal(t, []int{76, 76}, v1.ReadLengths())
	assert.Equal(t, "CTGTCTCTTATACACATCT", v1.SettingsFields().Get("Adapter"))

	recs := v1.Samples()
	require.Len(t, recs, 2)
	assert.Equal(t, "D701", recs[0].Meta.Get("I7_Index_ID"))
	assert.Equal(t, "NexteraXT", recs[0].Custom.Get("LibraryPrep"))
	assert.Equal(t, "2", recs[1].Lane)
	assert.Contains(t, v1.Columns(), "I7_Index_ID")
}

func TestFromModel_ConvertsDialectOnBuild(t *testing.T) {
	m, err := schema.Parse(builderV1Fixture)
	require.NoError(t, err)

	out, err := New(sheet.FormatV2).FromModel(m).Build()
	require.NoError(t, err)

	assert.Equal(t, sheet.FormatV2, out.Format())
	assert.NotContains(t, out.Columns(), "I7_Index_ID",
		"v1 index-name metadata has no v2 column")
	assert.Contains(t, out.Columns(), "LibraryPrep")
	require.Len(t, out.Samples(), 2)
	assert.Equal(t, "ACGTACGTAC", out.Samples()[0].Index)
}

func TestFromModel_SkipsIncompleteRecords(t *testing.T) {
	text := `[Header]
IEMFileVersion,5

[Data]
Lane,Sample_ID,index
1,S1,ACGTACGTAC
1,,GGGGCCCCAA
1,S3,
`
	m, err := schema.Parse(text)
	require.NoError(t, err)

	b := New(sheet.FormatV1).FromModel(m)
	assert.Equal(t, []string{"S1"}, b.SampleIDs())
}

func TestBuilder_Write(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SampleSheet.csv")

	b := New(sheet.FormatV2).
		SetRunName("Run001").
		SetReads(151, 151).
		SetAdapters("CTGTCTCTTATACACATCT", "").
		AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC", Index2: "TTTTGGGGCC"}).
		AddSample(Sample{SampleID: "S2", Index: "GGGGCCCCAA", Index2: "AACCGGTTAA"})

	require.NoError(t, b.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "[BCLConvert_Data]")
	assert.Contains(t, content, "1,S1,ACGTACGTAC,TTTTGGGGCC")
	assert.True(t, len(content) > 0 && content[len(content)-1] == '\n', "trailing newline")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestBuilder_Write_RefusesInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SampleSheet.csv")

	b := New(sheet.FormatV2).
		SetReads(151, 151).
		AddSample(Sample{SampleID: "S1", Index: "ACGTACGTAC", Lane: "1"}).
		AddSample(Sample{SampleID: "S2", Index: "ACGTACGTAC", Lane: "1"})

	err := b.Write(path)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "DUPLICATE_INDEX")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing is written on refusal")

	require.NoError(t, b.SkipValidation().Write(path))
	_, statErr = os.Stat(path)
	assert.NoError(t, statErr)
}

func TestBuilder_Write_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SampleSheet.csv")
	err := New(sheet.FormatV2).Write(path)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestWriteModel(t *testing.T) {
	m, err := schema.Parse(builderV1Fixture)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteModel(path, m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Lane,Sample_ID,Sample_Name,I7_Index_ID,index,Sample_Project,LibraryPrep")
}
