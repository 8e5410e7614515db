// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode"
)

// stringify renders a config value the way comparisons see it.
func stringify(value interface{}) string {
	return fmt.Sprintf("%v", value)
}

// equalValues is the shared equality core for the eq and neq checks.
// Values are equal when they coerce to the same string, or when the
// expected value is a valid regular expression that matches the whole
// actual value. neq is the exact negation, so the two checks stay
// duals of each other.
func equalValues(expected, actual interface{}) bool {
	want, got := stringify(expected), stringify(actual)
	if want == got {
		return true
	}
	exp, err := regexp.Compile("^(?:" + want + ")$")
	if err != nil {
		return false
	}
	return exp.MatchString(got)
}

// atoi converts unit-suffixed strings into integers: a lowercase
// suffix is decimal ("2k" is 2000) and an uppercase suffix is binary
// ("2K" is 2048). Values in any other shape come back unchanged.
func atoi(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok || s == "" {
		return value
	}
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return value
	}
	suffix := rune(s[len(s)-1])
	var quotient int64 = 1024
	if unicode.IsLower(suffix) {
		quotient = 1000
	}
	switch unicode.ToLower(suffix) {
	case 'k':
		return n * quotient
	case 'm':
		return n * quotient * quotient
	case 'g':
		return n * quotient * quotient * quotient
	}
	return value
}

// numericValue reduces a config value to a number for gte checks,
// converting unit suffixes first. The second return is false when the
// value is not numeric.
func numericValue(value interface{}) (float64, bool) {
	switch n := atoi(value).(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
