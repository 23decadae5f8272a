package schema

import (
	"regexp"
	"strconv"
	"strings"
)

// Cycle type codes in an OverrideCycles string, per the BCLConvert user
// guide: Y template, I index, U UMI, N masked.
var (
	rxIndexUMI = regexp.MustCompile(`^I(\d+)U(\d+)`)
	rxCycleTok = regexp.MustCompile(`([A-Z])(\d+)`)
)

// ReadStructure is the decoded form of a BCLConvert OverrideCycles value.
//
// Segments holds per-segment cycle counts keyed by labels such as
// "read1_template", "index2_length", "index2_umi" and "read4_masked". The
// ordinal in each label is the 1-based position of the segment within the
// OverrideCycles string, not the physical read number reported by the
// instrument. UMILength is the total number of UMI cycles summed across
// every segment. UMILocation names the segment contributing the most UMI
// cycles, the earliest such segment on a tie, or "" when the run carries
// no UMIs.
type ReadStructure struct {
	UMILength   int
	UMILocation string
	Segments    map[string]int
}

// ParseOverrideCycles decodes an OverrideCycles value such as
// "Y151;I10U9;I10;Y151". Letters outside Y, I, U and N are ignored.
// An empty value decodes to the zero ReadStructure.
func ParseOverrideCycles(value string) ReadStructure {
	value = strings.TrimSpace(value)
	if value == "" {
		return ReadStructure{}
	}

	rs := ReadStructure{Segments: make(map[string]int)}
	best := 0 // largest UMI contribution from any single segment

	for i, segment := range strings.Split(value, ";") {
		ord := strconv.Itoa(i + 1)

		// An index read with trailing UMI cycles, e.g. I10U9. The UMI is
		// attached to the index segment rather than a template read, so
		// the location keeps the index label.
		if m := rxIndexUMI.FindStringSubmatch(segment); m != nil {
			idxLen, _ := strconv.Atoi(m[1])
			umiLen, _ := strconv.Atoi(m[2])
			rs.Segments["index"+ord+"_length"] = idxLen
			rs.Segments["index"+ord+"_umi"] = umiLen
			rs.UMILength += umiLen
			if umiLen > best {
				best = umiLen
				rs.UMILocation = "index" + ord
			}
			continue
		}

		segUMI := 0
		for _, tok := range rxCycleTok.FindAllStringSubmatch(segment, -1) {
			n, _ := strconv.Atoi(tok[2])
			switch tok[1] {
			case "Y":
				rs.Segments["read"+ord+"_template"] += n
			case "I":
				rs.Segments["index"+ord+"_length"] += n
			case "U":
				rs.Segments["read"+ord+"_umi"] += n
				segUMI += n
			case "N":
				rs.Segments["read"+ord+"_masked"] += n
			}
		}
		if segUMI > 0 {
			rs.UMILength += segUMI
			if segUMI > best {
				best = segUMI
				rs.UMILocation = "read" + ord
			}
		}
	}
	return rs
}
