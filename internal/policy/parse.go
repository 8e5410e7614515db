// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package policy

import (
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/schema"
)

// Parse builds a Document from a merged rules mapping, as produced by
// the rules loader. The mapping must already have includes expanded and
// anchor artifacts flattened. Structural problems are NotValid errors;
// unrecognised top-level keys are logged and skipped so newer rule
// files keep working against older linters.
func Parse(raw map[string]interface{}) (*Document, error) {
	doc := &Document{
		subordinates:      make(map[string]*SubordinateRule),
		knownCharms:       set.NewStrings(),
		opsMandatory:      set.NewStrings(),
		opsOptional:       set.NewStrings(),
		opsSubordinate:    set.NewStrings(),
		cloudMandatory:    make(map[CloudType]set.Strings),
		cloudOpsMandatory: make(map[CloudType]set.Strings),
		configRules:       make(map[string]map[string]OptionRule),
		cloudConfig:       make(map[CloudType]map[string]map[string]OptionRule),
		saas:              set.NewStrings(),
		spaceChecks: SpaceChecks{
			EnforceEndpoints: set.NewStrings(),
			IgnoreEndpoints:  set.NewStrings(),
		},
	}

	// Sections are dispatched in sorted key order so that any error
	// reported is stable across runs of the same document.
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		var err error
		switch {
		case key == "subordinates":
			err = doc.parseSubordinates(value)
		case key == "known charms":
			doc.haveKnown = true
			doc.knownCharms, err = coerceStringSet(value, key)
		case key == "operations mandatory":
			doc.opsMandatory, err = coerceStringSet(value, key)
		case key == "operations optional":
			doc.opsOptional, err = coerceStringSet(value, key)
		case key == "operations subordinate":
			doc.opsSubordinate, err = coerceStringSet(value, key)
		case key == "config":
			doc.configRules, err = parseConfigRules(value, key)
		case key == "space checks":
			err = doc.parseSpaceChecks(value)
		case key == "saas":
			doc.saas, err = coerceStringSet(value, key)
		case key == "relations":
			err = doc.parseRelationRules(value)
		case strings.HasPrefix(key, "operations ") && strings.HasSuffix(key, " mandatory"):
			cloud := CloudType(strings.TrimSuffix(strings.TrimPrefix(key, "operations "), " mandatory"))
			doc.cloudOpsMandatory[cloud], err = coerceStringSet(value, key)
		case strings.HasSuffix(key, " mandatory"):
			cloud := CloudType(strings.TrimSuffix(key, " mandatory"))
			doc.cloudMandatory[cloud], err = coerceStringSet(value, key)
		case strings.HasSuffix(key, " config"):
			cloud := CloudType(strings.TrimSuffix(key, " config"))
			doc.cloudConfig[cloud], err = parseConfigRules(value, key)
		default:
			logger.Warningf("ignoring unrecognised rule section %q", key)
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
	}

	// Ubiquitous subordinates must establish their relation explicitly,
	// so they feed the relation checker as well.
	for _, charm := range doc.SubordinateCharms() {
		rule := doc.subordinates[charm]
		if !rule.Ubiquitous {
			continue
		}
		doc.relationRules = append(doc.relationRules, RelationRule{
			Charm:      charm,
			Checks:     rule.Checks,
			Exceptions: rule.Exceptions,
			Ubiquitous: true,
		})
	}
	return doc, nil
}

func (d *Document) parseSubordinates(value interface{}) error {
	section, err := coerceStringMap(value, "subordinates")
	if err != nil {
		return errors.Trace(err)
	}

	fields := schema.Fields{
		"where":              schema.String(),
		"host-suffixes":      schema.List(schema.String()),
		"container-suffixes": schema.List(schema.String()),
		"exceptions":         schema.List(schema.String()),
		"allow-multiple":     schema.Bool(),
		"ubiquitous":         schema.Bool(),
		"check":              schema.List(schema.Any()),
	}
	defaults := schema.Defaults{
		"host-suffixes":      schema.Omit,
		"container-suffixes": schema.Omit,
		"exceptions":         schema.Omit,
		"allow-multiple":     schema.Omit,
		"ubiquitous":         schema.Omit,
		"check":              schema.Omit,
	}
	checker := schema.FieldMap(fields, defaults)

	for charm, entry := range section {
		coerced, err := checker.Coerce(entry, nil)
		if err != nil {
			return errors.Annotatef(err, "subordinate rule %q schema check failed", charm)
		}
		valid := coerced.(map[string]interface{})

		scope, err := ParseScope(valid["where"].(string))
		if err != nil {
			return errors.Annotatef(err, "subordinate rule %q", charm)
		}
		rule := &SubordinateRule{
			Charm:             charm,
			Scope:             scope,
			HostSuffixes:      optStringList(valid, "host-suffixes"),
			ContainerSuffixes: optStringList(valid, "container-suffixes"),
			Exceptions:        set.NewStrings(optStringList(valid, "exceptions")...),
			AllowMultiple:     optBool(valid, "allow-multiple"),
			Ubiquitous:        optBool(valid, "ubiquitous"),
		}
		if raw, ok := valid["check"]; ok {
			rule.Checks, err = coercePairs(raw, "subordinate rule "+charm+" check")
			if err != nil {
				return errors.Trace(err)
			}
		}
		d.subordinates[charm] = rule
	}
	return nil
}

func parseConfigRules(value interface{}, section string) (map[string]map[string]OptionRule, error) {
	charms, err := coerceStringMap(value, section)
	if err != nil {
		return nil, errors.Trace(err)
	}
	rules := make(map[string]map[string]OptionRule)
	for charm, entry := range charms {
		options, err := coerceStringMap(entry, section+" charm "+charm)
		if err != nil {
			return nil, errors.Trace(err)
		}
		charmRules := make(map[string]OptionRule)
		for option, assertion := range options {
			rule, err := parseOptionRule(assertion)
			if err != nil {
				return nil, errors.Annotatef(err, "%s rule for %q option %q", section, charm, option)
			}
			charmRules[option] = rule
		}
		rules[charm] = charmRules
	}
	return rules, nil
}

func parseOptionRule(value interface{}) (OptionRule, error) {
	ops, err := coerceStringMap(value, "assertion")
	if err != nil {
		return OptionRule{}, errors.Trace(err)
	}
	var rule OptionRule
	for op, expected := range ops {
		if op == "suffixes" {
			rule.Suffixes, err = coerceStringList(expected, "suffixes")
			if err != nil {
				return OptionRule{}, errors.Trace(err)
			}
			continue
		}
		rule.Asserts = append(rule.Asserts, Assertion{Op: Op(op), Value: expected})
	}
	sort.Slice(rule.Asserts, func(i, j int) bool {
		return rule.Asserts[i].Op < rule.Asserts[j].Op
	})
	return rule, nil
}

func (d *Document) parseSpaceChecks(value interface{}) error {
	fields := schema.Fields{
		"enforce endpoints": schema.List(schema.String()),
		"enforce relations": schema.List(schema.Any()),
		"ignore endpoints":  schema.List(schema.String()),
		"ignore relations":  schema.List(schema.Any()),
	}
	defaults := schema.Defaults{
		"enforce endpoints": schema.Omit,
		"enforce relations": schema.Omit,
		"ignore endpoints":  schema.Omit,
		"ignore relations":  schema.Omit,
	}
	coerced, err := schema.FieldMap(fields, defaults).Coerce(value, nil)
	if err != nil {
		return errors.Annotate(err, "space checks schema check failed")
	}
	valid := coerced.(map[string]interface{})

	d.spaceChecks.EnforceEndpoints = set.NewStrings(optStringList(valid, "enforce endpoints")...)
	d.spaceChecks.IgnoreEndpoints = set.NewStrings(optStringList(valid, "ignore endpoints")...)
	if raw, ok := valid["enforce relations"]; ok {
		if d.spaceChecks.EnforceRelations, err = coercePairs(raw, "enforce relations"); err != nil {
			return errors.Trace(err)
		}
	}
	if raw, ok := valid["ignore relations"]; ok {
		if d.spaceChecks.IgnoreRelations, err = coercePairs(raw, "ignore relations"); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (d *Document) parseRelationRules(value interface{}) error {
	entries, ok := asList(value)
	if !ok {
		return errors.NotValidf("relations section %v", value)
	}

	fields := schema.Fields{
		"charm":      schema.String(),
		"check":      schema.List(schema.Any()),
		"not-exist":  schema.List(schema.Any()),
		"exception":  schema.List(schema.String()),
		"ubiquitous": schema.Bool(),
	}
	defaults := schema.Defaults{
		"check":      schema.Omit,
		"not-exist":  schema.Omit,
		"exception":  schema.Omit,
		"ubiquitous": schema.Omit,
	}
	checker := schema.FieldMap(fields, defaults)

	for i, entry := range entries {
		coerced, err := checker.Coerce(entry, nil)
		if err != nil {
			return errors.Annotatef(err, "relation rule %d schema check failed", i)
		}
		valid := coerced.(map[string]interface{})
		rule := RelationRule{
			Charm:      valid["charm"].(string),
			Exceptions: set.NewStrings(optStringList(valid, "exception")...),
			Ubiquitous: optBool(valid, "ubiquitous"),
		}
		if raw, ok := valid["check"]; ok {
			if rule.Checks, err = coercePairs(raw, "relation rule check"); err != nil {
				return errors.Trace(err)
			}
		}
		if raw, ok := valid["not-exist"]; ok {
			if rule.NotExist, err = coercePairs(raw, "relation rule not-exist"); err != nil {
				return errors.Trace(err)
			}
		}
		d.relationRules = append(d.relationRules, rule)
	}
	return nil
}

func coerceStringMap(value interface{}, context string) (map[string]interface{}, error) {
	coerced, err := schema.StringMap(schema.Any()).Coerce(value, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "%s schema check failed", context)
	}
	return coerced.(map[string]interface{}), nil
}

func coerceStringList(value interface{}, context string) ([]string, error) {
	coerced, err := schema.List(schema.String()).Coerce(value, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "%s schema check failed", context)
	}
	items := coerced.([]interface{})
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = item.(string)
	}
	return result, nil
}

func coerceStringSet(value interface{}, context string) (set.Strings, error) {
	items, err := coerceStringList(value, context)
	if err != nil {
		return set.NewStrings(), errors.Trace(err)
	}
	return set.NewStrings(items...), nil
}

// coercePairs coerces a list of two-element endpoint lists. Empty
// entries are tolerated, matching rule files that template the lists
// from anchors.
func coercePairs(value interface{}, context string) ([]EndpointPair, error) {
	entries, ok := asList(value)
	if !ok {
		return nil, errors.NotValidf("%s: %v", context, value)
	}
	var pairs []EndpointPair
	for _, entry := range entries {
		members, ok := asList(entry)
		if !ok || len(members) == 0 {
			continue
		}
		if len(members) != 2 {
			return nil, errors.NotValidf("%s entry %v", context, entry)
		}
		first, ok1 := members[0].(string)
		second, ok2 := members[1].(string)
		if !ok1 || !ok2 {
			return nil, errors.NotValidf("%s entry %v", context, entry)
		}
		pairs = append(pairs, EndpointPair{First: first, Second: second})
	}
	return pairs, nil
}

func asList(value interface{}) ([]interface{}, bool) {
	list, ok := value.([]interface{})
	return list, ok
}

func optStringList(valid map[string]interface{}, key string) []string {
	raw, ok := valid[key]
	if !ok {
		return nil
	}
	items := raw.([]interface{})
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = item.(string)
	}
	return result
}

func optBool(valid map[string]interface{}, key string) bool {
	raw, ok := valid[key]
	if !ok {
		return false
	}
	return raw.(bool)
}
