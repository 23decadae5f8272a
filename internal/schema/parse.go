package schema

import (
	"sheetnerd/internal/sheet"
)

// Parse scans raw sample-sheet text, detects which dialect it is written
// in and hands it to the matching parser. Callers that already know the
// dialect can scan and call ParseV1 or ParseV2 directly.
func Parse(text string) (Model, error) {
	doc := sheet.Scan(text)
	if sheet.DetectFormat(text) == sheet.FormatV2 {
		return ParseV2(doc)
	}
	return ParseV1(doc)
}

// UMILength reports the UMI cycle count for any parsed sheet. V2 sheets
// decode it from OverrideCycles, V1 sheets read the IndexUMILength header
// key, and anything else has none.
func UMILength(m Model) int {
	switch s := m.(type) {
	case *V1Sheet:
		return s.UMILength()
	case *V2Sheet:
		return s.UMILength()
	}
	return 0
}
