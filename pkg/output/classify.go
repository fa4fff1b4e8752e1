package output

import (
	re "regexp"
	"strings"
	"unicode"
)

// NoiseMarker A control token echoed on a line of its own by some bundlers.
// Lines consisting only of this token, once trailing whitespace and any
// timestamp are removed, are dropped.
const NoiseMarker string = "Child"

// TimestampPrefix Matches the `hh:mm:ss AM - ` prefix some watch mode
// compilers put in front of every message.
var TimestampPrefix *re.Regexp = re.MustCompile(`^\d\d:\d\d:\d\d [A-Za-z]{1,2} - ?`)

// Common error patterns for the tools usually driven by buildwatch
var (
	TypeScriptErrors *re.Regexp = re.MustCompile(`\berror TS\d+:`)
	WebpackErrors    *re.Regexp = re.MustCompile(`^ERROR\b`)
)

// Line A cleaned line of process output
type Line struct {
	Text  string
	Error bool
}

// Classify Splits a chunk of process output into display lines
//
// Arguments:
//
// - chunk        string     Raw output, zero or more lines
// - errorPattern *re.Regexp Optional. Lines matching it are flagged as errors
//
// Return:
//
// - []Line The cleaned lines in input order
func Classify(chunk string, errorPattern *re.Regexp) (lines []Line) {
	lines = make([]Line, 0)
	for _, raw := range strings.Split(chunk, "\n") {
		var text string = strings.TrimRightFunc(raw, unicode.IsSpace)
		if isNoise(text) {
			continue
		}

		text = StripTimestamp(text)
		if isNoise(text) {
			continue
		}

		lines = append(lines, Line{
			Text:  text,
			Error: errorPattern != nil && errorPattern.MatchString(text),
		})
	}
	return
}

// StripTimestamp removes any leading timestamp prefixes from line
func StripTimestamp(line string) string {
	for {
		loc := TimestampPrefix.FindStringIndex(line)
		if loc == nil {
			return line
		}
		line = line[loc[1]:]
	}
}

func isNoise(text string) bool {
	return strings.TrimSpace(text) == "" || text == NoiseMarker
}
