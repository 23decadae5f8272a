package sheet

import "strings"

// Format identifies the sample-sheet dialect.
type Format int

const (
	// FormatV1 is the legacy IEM layout: IEMFileVersion header, bare cycle
	// numbers in [Reads], lowercase index/index2 data columns.
	FormatV1 Format = iota
	// FormatV2 is the BCLConvert layout: FileFormatVersion header,
	// key-value [Reads], [BCLConvert_*] sections, Index/Index2 columns.
	FormatV2
)

func (f Format) String() string {
	if f == FormatV2 {
		return "V2"
	}
	return "V1"
}

// ParseFormat converts user input ("v1", "V2", ...) to a Format.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "V1":
		return FormatV1, true
	case "V2":
		return FormatV2, true
	}
	return FormatV1, false
}

// DetectFormat decides which dialect raw sample-sheet text is written in.
// It is a pure function of the text and runs three short-circuiting phases:
//
//  1. Header discriminator: inside [Header], the first row whose key equals
//     FileFormatVersion means V2, IEMFileVersion means V1.
//  2. Section scan: the literal [BCLConvert_Settings] or [BCLConvert_Data]
//     in the text outside the header section means V2.
//  3. Default: V1.
//
// Phase 1 stops at the end of the header section, so work is bounded by the
// header size; no document model is built. Phase 2 never re-reads the rows
// phase 1 already covered.
func DetectFormat(text string) Format {
	text = strings.TrimPrefix(text, "\uFEFF")

	headerStart, headerEnd := 0, 0
	offset := 0
	inHeader := false
	for _, raw := range strings.Split(text, "\n") {
		lineStart := offset
		offset += len(raw) + 1

		line := strings.TrimSpace(cleaner.Replace(raw))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			end := strings.Index(line, "]")
			if end < 0 {
				continue
			}
			name := strings.ToLower(strings.TrimSpace(line[1:end]))
			if inHeader && name != "header" {
				// Left the header without a verdict; phase 1 is done.
				headerEnd = lineStart
				break
			}
			if name == "header" && !inHeader {
				inHeader = true
				headerStart = lineStart
				headerEnd = len(text) // until a later section closes it
			}
			continue
		}
		if !inHeader {
			continue
		}
		key, _, _ := strings.Cut(line, ",")
		switch strings.TrimSpace(key) {
		case "FileFormatVersion":
			return FormatV2
		case "IEMFileVersion":
			return FormatV1
		}
	}

	if hasV2Sections(text[:headerStart]) || hasV2Sections(text[headerEnd:]) {
		return FormatV2
	}

	return FormatV1
}

func hasV2Sections(s string) bool {
	return strings.Contains(s, "[BCLConvert_Settings]") || strings.Contains(s, "[BCLConvert_Data]")
}
