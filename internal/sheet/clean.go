package sheet

import (
	"regexp"
	"strings"
)

// rxDataWS matches any whitespace run inside a data row. Whitespace in
// data rows is never meaningful; instrument software rejects padded
// fields outright.
var rxDataWS = regexp.MustCompile(`\s+`)

// Clean normalizes raw sheet text for reuse: quotes, carriage returns and
// tabs are scrubbed everywhere, rows inside non-cloud data sections lose
// all interior whitespace, and V2 sheets get their settings and data
// section headers standardized to the BCLConvert names. A non-empty
// experimentID replaces the current experiment name value.
//
// Comments and blank lines survive; Clean tidies a file, it does not
// parse it.
func Clean(text, experimentID string) string {
	isV2 := DetectFormat(text) == FormatV2

	lines := strings.Split(strings.TrimPrefix(text, "\uFEFF"), "\n")
	out := make([]string, 0, len(lines))
	inData := false

	for _, raw := range lines {
		line := strings.TrimSpace(cleaner.Replace(raw))

		if strings.HasPrefix(line, "[") {
			lower := strings.ToLower(line)
			cloud := strings.Contains(lower, "cloud")
			inData = strings.Contains(lower, "data") && !cloud

			if isV2 && !cloud {
				switch {
				case strings.Contains(lower, "settings"):
					line = "[BCLConvert_Settings]"
				case strings.Contains(lower, "data"):
					line = "[BCLConvert_Data]"
				}
			}
			out = append(out, line)
			continue
		}

		if experimentID != "" && isExperimentNameRow(line) {
			cols := strings.Split(line, ",")
			if len(cols) >= 2 {
				cols[1] = experimentID
				line = strings.Join(cols, ",")
			}
		}

		if inData {
			line = rxDataWS.ReplaceAllString(line, "")
		}

		out = append(out, line)
	}

	// Drop trailing blank lines, then terminate with a single newline.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n") + "\n"
}

// isExperimentNameRow matches both dialect spellings of the experiment
// name key: "Experiment Name" (V1) and "ExperimentName" (V2).
func isExperimentNameRow(line string) bool {
	key, _, ok := strings.Cut(line, ",")
	if !ok {
		return false
	}
	key = strings.ReplaceAll(strings.TrimSpace(key), " ", "")
	return strings.EqualFold(key, "experimentname")
}
