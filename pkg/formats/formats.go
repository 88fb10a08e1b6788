// Package formats provides parsers for the id Tech 4 MD5 text formats.
//
// MD5 files are parsed leniently: sections are located by keyword, and each
// line inside a section is matched against the fixed shape expected there.
// Lines that do not match (comments, attributes, truncated records) are skipped,
// and a missing section produces an empty collection rather than an error.
package formats

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultFrameRate is used when an animation does not declare frameRate.
const DefaultFrameRate = 24

// num matches a numeric literal with optional sign and optional decimal part.
const num = `(-?\d+\.?\d*)`

// Header holds the "key value" lines that precede the sections of an MD5 file.
// Fields not present in the source are left at zero.
type Header struct {
	Version               int    // MD5Version
	CommandLine           string // commandline "..."
	NumJoints             int
	NumMeshes             int // md5mesh only
	NumFrames             int // md5anim only
	FrameRate             int // md5anim only
	NumAnimatedComponents int // md5anim only
}

var (
	headerIntRe     = regexp.MustCompile(`(?m)^\s*(MD5Version|numJoints|numMeshes|numFrames|frameRate|numAnimatedComponents)\s+` + num)
	headerCommandRe = regexp.MustCompile(`(?m)^\s*commandline\s+"(.*?)"`)
)

// parseHeader extracts the header fields found anywhere in source.
func parseHeader(source string) Header {
	var h Header
	for _, m := range headerIntRe.FindAllStringSubmatch(source, -1) {
		v := parseInt(m[2])
		switch m[1] {
		case "MD5Version":
			h.Version = v
		case "numJoints":
			h.NumJoints = v
		case "numMeshes":
			h.NumMeshes = v
		case "numFrames":
			h.NumFrames = v
		case "frameRate":
			h.FrameRate = v
		case "numAnimatedComponents":
			h.NumAnimatedComponents = v
		}
	}
	if m := headerCommandRe.FindStringSubmatch(source); m != nil {
		h.CommandLine = m[1]
	}
	return h
}

// sectionRe builds the non-greedy capture for a brace-delimited section.
func sectionRe(keyword string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)\b` + keyword + `\s*\{(.*?)\}`)
}

// sections returns the bodies of every section matching re, in source order.
func sections(re *regexp.Regexp, source string) []string {
	matches := re.FindAllStringSubmatch(source, -1)
	bodies := make([]string, 0, len(matches))
	for _, m := range matches {
		bodies = append(bodies, m[1])
	}
	return bodies
}

// section returns the body of the first section matching re, or "" if absent.
func section(re *regexp.Regexp, source string) string {
	m := re.FindStringSubmatch(source)
	if m == nil {
		return ""
	}
	return m[1]
}

// matchLines runs re against every line of body and keeps the submatches of
// the lines that fit. Order is preserved.
func matchLines(re *regexp.Regexp, body string) [][]string {
	var out [][]string
	for _, line := range strings.Split(body, "\n") {
		if m := re.FindStringSubmatch(line); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// parseFloat converts a literal already validated by num.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseInt truncates a numeric literal toward zero, so "3.0" reads as 3.
func parseInt(s string) int {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return int(math.Trunc(parseFloat(s)))
}
