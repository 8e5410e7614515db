// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint

import (
	"fmt"
)

// Severity ranks a violation. Errors make the lint run fail; warnings
// are advisory.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Violation is a single finding against the deployment.
type Violation struct {
	ID       string   `json:"id" yaml:"id"`
	Severity Severity `json:"severity" yaml:"severity"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Subject  string   `json:"subject,omitempty" yaml:"subject,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

// String renders the violation the way the text output prints it.
func (v Violation) String() string {
	if v.Subject != "" {
		return fmt.Sprintf("%s: %s: %s (%s)", v.Severity, v.Subject, v.Message, v.ID)
	}
	return fmt.Sprintf("%s: %s (%s)", v.Severity, v.Message, v.ID)
}

// Report is the outcome of linting one deployment.
type Report struct {
	Name       string      `json:"name,omitempty" yaml:"name,omitempty"`
	Controller string      `json:"controller,omitempty" yaml:"controller,omitempty"`
	Model      string      `json:"model,omitempty" yaml:"model,omitempty"`
	Rules      string      `json:"rules,omitempty" yaml:"rules,omitempty"`
	Violations []Violation `json:"violations" yaml:"violations"`
	Summary    Summary     `json:"summary" yaml:"summary"`
}

// Summary totals the violations by severity.
type Summary struct {
	Errors   int `json:"errors" yaml:"errors"`
	Warnings int `json:"warnings" yaml:"warnings"`
}

// Errors returns the number of error-severity violations.
func (r *Report) Errors() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Warnings returns the number of warning-severity violations.
func (r *Report) Warnings() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// collector accumulates violations in emission order. Checks traverse
// the deployment in sorted order, so the order here is stable for a
// given graph and policy.
type collector struct {
	violations []Violation
}

func (c *collector) add(v Violation) {
	switch v.Severity {
	case SeverityError:
		logger.Errorf("%s", v.Message)
	default:
		logger.Warningf("%s", v.Message)
	}
	c.violations = append(c.violations, v)
}
