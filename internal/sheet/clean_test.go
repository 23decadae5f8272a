package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean_V1(t *testing.T) {
	dirty := "[Header]\r\n" +
		"IEMFileVersion,4\r\n" +
		"Experiment Name,\"Run 042\"\r\n" +
		"\r\n" +
		"[Data]\r\n" +
		"Lane,Sample_ID,index\r\n" +
		"1, S1 ,ACG TGT\r\n" +
		"1,\tS2,CCAATG\r\n"

	got := Clean(dirty, "")

	want := "[Header]\n" +
		"IEMFileVersion,4\n" +
		"Experiment Name,Run 042\n" +
		"\n" +
		"[Data]\n" +
		"Lane,Sample_ID,index\n" +
		"1,S1,ACGTGT\n" +
		"1,S2,CCAATG\n"
	assert.Equal(t, want, got)
}

func TestClean_V2StandardizesSectionNames(t *testing.T) {
	dirty := "[Header]\n" +
		"FileFormatVersion,2\n" +
		"[Reads]\n" +
		"Read1Cycles,151\n" +
		"[Settings]\n" +
		"AdapterRead1,CTGTCTCTTATACACATCT\n" +
		"[Data]\n" +
		"Sample_ID,Index\n" +
		"S1, ACGTACGTGT\n"

	got := Clean(dirty, "")

	assert.Contains(t, got, "[BCLConvert_Settings]\n")
	assert.Contains(t, got, "[BCLConvert_Data]\n")
	assert.Contains(t, got, "S1,ACGTACGTGT\n")
	assert.NotContains(t, got, "\n[Settings]\n")
}

func TestClean_V2LeavesCloudSectionsAlone(t *testing.T) {
	dirty := "[Header]\n" +
		"FileFormatVersion,2\n" +
		"[BCLConvert_Data]\n" +
		"Sample_ID,Index\n" +
		"S1,ACGTACGTGT\n" +
		"[Cloud_Settings]\n" +
		"GeneratedVersion,1.13.1\n" +
		"[Cloud_Data]\n" +
		"Sample_ID,ProjectName\n" +
		"S1,My Project\n"

	got := Clean(dirty, "")

	assert.Contains(t, got, "[Cloud_Settings]\n")
	assert.Contains(t, got, "[Cloud_Data]\n")
	assert.Contains(t, got, "S1,My Project\n", "cloud data keeps interior spaces")
}

func TestClean_V1SectionNamesUntouched(t *testing.T) {
	dirty := "[Header]\n" +
		"IEMFileVersion,4\n" +
		"[Settings]\n" +
		"Adapter,CTGTCTCTTATACACATCT\n" +
		"[Data]\n" +
		"Sample_ID,index\n" +
		"S1,ACGTGT\n"

	got := Clean(dirty, "")
	assert.Contains(t, got, "[Settings]\n", "V1 sheets keep their section names")
	assert.NotContains(t, got, "BCLConvert")
}

func TestClean_ReplacesExperimentName(t *testing.T) {
	t.Run("V1 spelling", func(t *testing.T) {
		got := Clean("[Header]\nExperiment Name,old\n[Data]\nSample_ID,index\nS1,ACGTGT\n", "NEW-ID")
		assert.Contains(t, got, "Experiment Name,NEW-ID\n")
	})

	t.Run("V2 spelling", func(t *testing.T) {
		got := Clean("[Header]\nFileFormatVersion,2\nExperimentName,old\n[BCLConvert_Data]\nSample_ID,Index\nS1,ACGTACGTGT\n", "NEW-ID")
		assert.Contains(t, got, "ExperimentName,NEW-ID\n")
	})

	t.Run("empty id leaves the name", func(t *testing.T) {
		got := Clean("[Header]\nExperiment Name,old\n", "")
		assert.Contains(t, got, "Experiment Name,old\n")
	})
}

func TestClean_TrailingNewlineNormalized(t *testing.T) {
	got := Clean("[Header]\nIEMFileVersion,4\n\n\n\n", "")
	assert.Equal(t, "[Header]\nIEMFileVersion,4\n", got)
}

func TestClean_StripsByteOrderMark(t *testing.T) {
	got := Clean("\ufeff[Header]\nIEMFileVersion,4\n", "")
	assert.Equal(t, "[Header]\nIEMFileVersion,4\n", got)
}

func TestClean_KeepsComments(t *testing.T) {
	got := Clean("# exported by LIMS\n[Header]\nIEMFileVersion,4\n", "")
	assert.Contains(t, got, "# exported by LIMS\n")
}
