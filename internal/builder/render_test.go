package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetnerd/internal/schema"
	"sheetnerd/internal/sheet"
)

func TestRender_BuiltV2(t *testing.T) {
	b := New(sheet.FormatV2).
		SetRunName("Run001").
		SetInstrumentPlatform("NovaSeqXSeries").
		SetReads(151, 151).
		SetIndexReads(10, 10).
		SetAdapters("CTGTCTCTTATACACATCT", "").
		SetOverrideCycles("Y151;I10;I10;Y151").
		AddSample(Sample{SampleID: "S1", Index: "attactcgat", Index2: "tatagcctgt", Project: "ProjX"}).
		AddSample(Sample{SampleID: "S2", Index: "GGGGCCCCAA", Index2: "AACCGGTTAA", Project: "ProjX"})

	m, err := b.Build()
	require.NoError(t, err)

	text, err := Render(m)
	require.NoError(t, err)

	want := `[Header]
FileFormatVersion,2
RunName,Run001
InstrumentPlatform,NovaSeqXSeries

[Reads]
Read1Cycles,151
Read2Cycles,151
Index1Cycles,10
Index2Cycles,10

[BCLConvert_Settings]
AdapterRead1,CTGTCTCTTATACACATCT
OverrideCycles,Y151;I10;I10;Y151

[BCLConvert_Data]
Lane,Sample_ID,Index,Index2,Sample_Project
1,S1,ATTACTCGAT,TATAGCCTGT,ProjX
1,S2,GGGGCCCCAA,AACCGGTTAA,ProjX
`
	assert.Equal(t, want, text)
}

func TestRender_BuiltV1(t *testing.T) {
	b := New(sheet.FormatV1).
		SetRunName("MiSeq Amplicon Run").
		SetHeaderField("Date", "2024-01-15").
		SetHeaderField("Chemistry", "Amplicon").
		SetReads(151, 151).
		SetAdapters("CTGTCTCTTATACACATCT", "AGATCGGAAGAGC").
		AddSample(Sample{SampleID: "S1", Index: "acgtacgtac", Index2: "ttttggggcc", Plate: "Plate1", Well: "A01", Project: "ProjX", Description: "tumor"}).
		AddSample(Sample{SampleID: "S2", Name: "Beta", Index: "GGGGCCCCAA", Index2: "AACCGGTTAA", Plate: "Plate1", Well: "A02", Project: "ProjX", Description: "normal"})

	m, err := b.Build()
	require.NoError(t, err)

	text, err := Render(m)
	require.NoError(t, err)

	want := `[Header]
IEMFileVersion,5
Experiment Name,MiSeq Amplicon Run
Date,2024-01-15
Workflow,GenerateFASTQ
Chemistry,Amplicon

[Reads]
151
151

[Settings]
Adapter,CTGTCTCTTATACACATCT
AdapterRead2,AGATCGGAAGAGC

[Data]
Lane,Sample_ID,Sample_Name,Sample_Plate,Sample_Well,index,index2,Sample_Project,Description
1,S1,S1,Plate1,A01,ACGTACGTAC,TTTTGGGGCC,ProjX,tumor
1,S2,Beta,Plate1,A02,GGGGCCCCAA,AACCGGTTAA,ProjX,normal
`
	assert.Equal(t, want, text)
}

func TestRender_ParsedRoundTrip(t *testing.T) {
	m, err := schema.Parse(builderV1Fixture)
	require.NoError(t, err)

	first, err := Render(m)
	require.NoError(t, err)

	reparsed, err := schema.Parse(first)
	require.NoError(t, err)
	second, err := Render(reparsed)
	require.NoError(t, err)

	assert.Equal(t, first, second, "render must be a fixed point after one pass")
	assert.Equal(t, m.Columns(), reparsed.Columns(), "column casing and order survive verbatim")
	require.Len(t, reparsed.Samples(), 2)
	assert.Equal(t, "D701", reparsed.Samples()[0].Meta.Get("I7_Index_ID"))
}

func TestRender_V2CloudSectionsSurvive(t *testing.T) {
	text := `[Header]
FileFormatVersion,2
RunName,CloudRun

[Reads]
Read1Cycles,151

[BCLConvert_Settings]
AdapterRead1,CTGTCTCTTATACACATCT

[BCLConvert_Data]
Lane,Sample_ID,Index
1,S1,ACGTACGTAC

[Cloud_Settings]
GeneratedVersion,1.13.1

[Cloud_Data]
Sample_ID,ProjectName
S1,CloudProj
`
	m, err := schema.Parse(text)
	require.NoError(t, err)

	out, err := Render(m)
	require.NoError(t, err)

	assert.Contains(t, out, "[Cloud_Settings]\nGeneratedVersion,1.13.1")
	assert.Contains(t, out, "[Cloud_Data]\nSample_ID,ProjectName\nS1,CloudProj")
}

func TestRender_UnsafeValueAborts(t *testing.T) {
	m := schema.BuildV1(schema.V1Spec{
		Records: []schema.SampleRecord{{SampleID: "S1", Index: `ACGT"T`}},
	})

	_, err := Render(m)
	require.ErrorIs(t, err, ErrUnsafeValue)
	assert.Contains(t, err.Error(), "'index'")
}

func TestRender_LeadKeyMovesFirst(t *testing.T) {
	header := schema.FieldsFrom(
		"Experiment Name", "X",
		"IEMFileVersion", "5",
	)
	m := schema.BuildV1(schema.V1Spec{
		Header:  header,
		Records: []schema.SampleRecord{{SampleID: "S1", Index: "ACGTACGTAC"}},
	})

	out, err := Render(m)
	require.NoError(t, err)
	assert.Contains(t, out, "[Header]\nIEMFileVersion,5\nExperiment Name,X")
}
