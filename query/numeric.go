package query

import (
	"regexp"
	"strconv"
)

// numericPattern matches plain and scientific-notation numbers.
var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][+-]?\d+)?$`)

// convertCell turns a numeric-looking string into a float64; anything
// else passes through unchanged.
func convertCell(s string) any {
	if !numericPattern.MatchString(s) {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return f
}
