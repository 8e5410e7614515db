// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package policy

// Op names a config comparator. Unrecognised operators survive parsing
// so the evaluator can report them as invalid rules against the
// application they target, rather than failing the whole document.
type Op string

const (
	OpEq     Op = "eq"
	OpNeq    Op = "neq"
	OpGte    Op = "gte"
	OpIsSet  Op = "isset"
	OpSearch Op = "search"
)

// Assertion is one comparator applied to a config option.
type Assertion struct {
	Op    Op
	Value interface{}
}

// OptionRule carries all assertions for one config option, plus the
// optional key suffixes the option may appear under. Asserts are kept
// sorted by operator for stable evaluation order.
type OptionRule struct {
	Suffixes []string
	Asserts  []Assertion
}
