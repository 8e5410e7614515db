// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/jujulint/internal/policy"
)

// checkConfiguration applies the config rules to every application
// whose charm has any, generic rules first with cloud-profile rules
// merged over them.
func (l *Linter) checkConfiguration() {
	for _, appName := range l.graph.AppNames() {
		app := l.graph.Applications[appName]
		charm, ok := l.graph.Charm(appName)
		if !ok {
			continue
		}
		rules := l.policy.ConfigRules(l.cloud, charm)
		if len(rules) == 0 {
			continue
		}
		if app.Options == nil {
			logger.Debugf("application %s carries no config; skipping config checks", appName)
			continue
		}

		options := make([]string, 0, len(rules))
		for option := range rules {
			options = append(options, option)
		}
		sort.Strings(options)
		for _, option := range options {
			rule := rules[option]
			keys := candidateKeys(option, rule.Suffixes)
			for _, assert := range rule.Asserts {
				l.checkAssertion(appName, option, keys, assert, app.Options)
			}
		}
	}
}

// candidateKeys returns the config keys an option rule may match: the
// bare option plus "<option>-<suffix>" and "<suffix>-<option>" for each
// declared suffix.
func candidateKeys(option string, suffixes []string) []string {
	keys := []string{option}
	seen := set.NewStrings(option)
	for _, suffix := range suffixes {
		for _, key := range []string{option + "-" + suffix, suffix + "-" + option} {
			if !seen.Contains(key) {
				seen.Add(key)
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func (l *Linter) checkAssertion(app, option string, keys []string, assert policy.Assertion, options map[string]interface{}) {
	var present []string
	for _, key := range keys {
		if _, ok := options[key]; ok {
			present = append(present, key)
		}
	}

	switch assert.Op {
	case policy.OpIsSet:
		l.checkIsSet(app, option, present, assert.Value, options)
	case policy.OpEq:
		l.checkOperator(eqOperator, app, option, present, assert.Value, options)
	case policy.OpGte:
		l.checkOperator(gteOperator, app, option, present, assert.Value, options)
	case policy.OpSearch:
		l.checkOperator(searchOperator, app, option, present, assert.Value, options)
	case policy.OpNeq:
		l.checkNeq(app, option, present, assert.Value, options)
	default:
		l.invalidRule(app, option, errors.NotSupportedf("check operation %q", string(assert.Op)))
	}
}

// configOperator is one of the value comparisons. check returns an
// error only for a malformed assertion, which becomes an invalid-rule
// violation rather than aborting the run.
type configOperator struct {
	name     string
	repr     string
	check    func(expected, actual interface{}) (bool, error)
	template string // app, key, expected, actual
}

func (op configOperator) message(app, key string, expected, actual interface{}) string {
	return fmt.Sprintf(op.template, app, key, renderValue(expected), renderValue(actual))
}

var eqOperator = configOperator{
	name: "eq",
	repr: "==",
	check: func(expected, actual interface{}) (bool, error) {
		return equalValues(expected, actual), nil
	},
	template: "Application %s has incorrect setting for '%s': Expected %s, got %s",
}

var gteOperator = configOperator{
	name: "gte",
	repr: ">=",
	check: func(expected, actual interface{}) (bool, error) {
		want, ok := numericValue(expected)
		if !ok {
			return false, errors.NotValidf("numeric comparison with %v", expected)
		}
		got, ok := numericValue(actual)
		if !ok {
			return false, errors.NotValidf("numeric comparison with %v", actual)
		}
		return got >= want, nil
	},
	template: "Application %s has config for '%s' which is less than %s: %s",
}

var searchOperator = configOperator{
	name: "search",
	repr: "search",
	check: func(expected, actual interface{}) (bool, error) {
		exp, err := regexp.Compile(stringify(expected))
		if err != nil {
			return false, errors.NotValidf("regex %s", renderValue(expected))
		}
		return exp.MatchString(stringify(actual)), nil
	},
	template: "Application %s has an invalid config for '%s': regex %s not found at %s",
}

// checkOperator evaluates one comparison over the candidate keys. Any
// present key that satisfies the comparison satisfies the rule; if all
// present keys fail, each failure is reported. With no key present
// there is nothing to compare, which is logged but not a violation.
func (l *Linter) checkOperator(op configOperator, app, option string, present []string, expected interface{}, options map[string]interface{}) {
	if len(present) == 0 {
		logger.Warningf("application %s has no config for %q, cannot determine if %s %s",
			app, option, op.repr, renderValue(expected))
		return
	}
	type failure struct {
		key    string
		actual interface{}
	}
	var failures []failure
	for _, key := range present {
		actual := options[key]
		ok, err := op.check(expected, actual)
		if err != nil {
			l.invalidRule(app, key, err)
			return
		}
		if ok {
			logger.Debugf("application %s has a valid config for %q: %s (%s %s)",
				app, key, renderValue(expected), op.repr, renderValue(actual))
			return
		}
		failures = append(failures, failure{key: key, actual: actual})
	}
	for _, f := range failures {
		l.collector.add(Violation{
			ID:       "config-" + op.name + "-check",
			Severity: SeverityError,
			Tags:     []string{"config", op.name},
			Subject:  app,
			Message:  op.message(app, f.key, expected, f.actual),
		})
	}
}

// checkNeq forbids a value, so unlike the other comparisons every
// present candidate key is checked. An absent value reads as blank:
// forbidding blank makes absence a violation too.
func (l *Linter) checkNeq(app, option string, present []string, expected interface{}, options map[string]interface{}) {
	if len(present) == 0 {
		if equalValues(expected, "") {
			l.collector.add(Violation{
				ID:       "config-neq-check",
				Severity: SeverityError,
				Tags:     []string{"config", "neq"},
				Subject:  app,
				Message:  neqMessage(app, option, expected),
			})
		}
		return
	}
	for _, key := range present {
		if equalValues(expected, options[key]) {
			l.collector.add(Violation{
				ID:       "config-neq-check",
				Severity: SeverityError,
				Tags:     []string{"config", "neq"},
				Subject:  app,
				Message:  neqMessage(app, key, expected),
			})
		}
	}
}

func neqMessage(app, key string, expected interface{}) string {
	return fmt.Sprintf("Application %s has incorrect setting for '%s': Should not be %s",
		app, key, renderValue(expected))
}

func (l *Linter) checkIsSet(app, option string, present []string, expected interface{}, options map[string]interface{}) {
	want, ok := expected.(bool)
	if !ok {
		l.invalidRule(app, option, errors.NotValidf("isset value %v", expected))
		return
	}
	if want {
		if len(present) > 0 {
			logger.Debugf("application %s correctly has config for %q", app, present[0])
			return
		}
		l.collector.add(Violation{
			ID:       "config-isset-check-true",
			Severity: SeverityError,
			Tags:     []string{"config", "isset"},
			Subject:  app,
			Message:  fmt.Sprintf("Application %s has no config for %s.", app, option),
		})
		return
	}
	for _, key := range present {
		l.collector.add(Violation{
			ID:       "config-isset-check-false",
			Severity: SeverityError,
			Tags:     []string{"config", "isset"},
			Subject:  app,
			Message:  fmt.Sprintf("Application %s has config for %s: %v.", app, key, options[key]),
		})
	}
	if len(present) == 0 {
		logger.Debugf("application %s correctly has no config for %q", app, option)
	}
}

func (l *Linter) invalidRule(app, option string, err error) {
	l.collector.add(Violation{
		ID:       "invalid-rule",
		Severity: SeverityError,
		Tags:     []string{"config", "rule"},
		Subject:  app,
		Message:  fmt.Sprintf("Application %s has an invalid rule for '%s': %v", app, option, err),
	})
}

// renderValue formats a config value for violation messages, quoting
// strings so blank and whitespace values stay visible.
func renderValue(value interface{}) string {
	if s, ok := value.(string); ok {
		return fmt.Sprintf("'%s'", s)
	}
	return fmt.Sprintf("%v", value)
}
