// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package typecheck

import (
	"regexp"
	"strconv"
)

// LineClass is the semantic meaning of one line of checker output. The
// monitor's state machine only ever sees these classes; the raw substring
// matching stays in this file.
type LineClass int

const (
	// LineOther is inert output, passed through for display.
	LineOther LineClass = iota
	// LineCheckStarting means a new check began; results are stale.
	LineCheckStarting
	// LineClean means the last full check found zero errors.
	LineClean
	// LineErrors means the last full check found one or more errors,
	// or the line itself is an error diagnostic.
	LineErrors
)

var (
	// tsc emits these at the start of the initial and incremental checks.
	checkStartingRe = regexp.MustCompile(`(?i)(file change detected|starting compilation in watch mode)`)
	// "Found 0 errors." / "Found 3 errors." summary lines.
	foundErrorsRe = regexp.MustCompile(`(?i)found (\d+) errors?`)
	// Individual diagnostics, e.g. "app/routes.ts(10,5): error TS2322: ...".
	errorLineRe = regexp.MustCompile(`\berror TS\d+:`)
)

// Classify assigns a class to one line of checker output. For LineErrors
// originating from a summary line, count carries the reported error count;
// for a bare diagnostic line it is 1.
func Classify(line string) (class LineClass, count int) {
	if m := foundErrorsRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n == 0 {
			return LineClean, 0
		}
		return LineErrors, n
	}
	if checkStartingRe.MatchString(line) {
		return LineCheckStarting, 0
	}
	if errorLineRe.MatchString(line) {
		return LineErrors, 1
	}
	return LineOther, 0
}
