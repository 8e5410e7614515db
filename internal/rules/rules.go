// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package rules loads lint rule files. A rules file is YAML with two
// site conventions on top: top-level "!include <file>" lines splice in
// other files from the same directory, and anchors are commonly used
// to template charm lists, which leaves nested lists to flatten.
package rules

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gopkg.in/yaml.v2"
)

var logger = loggo.GetLogger("jujulint.rules")

// ReadFile loads a rules file and returns the merged top-level mapping,
// ready for policy parsing.
func ReadFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	text := expandIncludes(string(data), filepath.Dir(path))

	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, errors.Annotatef(err, "cannot parse rules file %q", path)
	}
	for key, value := range raw {
		raw[key] = flatten(value)
	}
	return raw, nil
}

// expandIncludes splices "!include <file>" lines into the rules text.
// Only top-level lines are processed, without recursion, and paths are
// relative to the rules file's directory. Malformed or unreadable
// includes are dropped with a warning.
func expandIncludes(text, dir string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "!include") {
			out = append(out, line)
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			logger.Warningf("invalid include in rules, ignored: %q", line)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, fields[1]))
		if err != nil {
			logger.Warningf("cannot read include %q: %v", fields[1], err)
			continue
		}
		out = append(out, string(data))
	}
	return strings.Join(out, "\n")
}

// flatten collapses nested lists left behind by anchor templating.
// Values that are not lists pass through unchanged.
func flatten(value interface{}) interface{} {
	list, ok := value.([]interface{})
	if !ok {
		return value
	}
	flat := make([]interface{}, 0, len(list))
	for _, item := range list {
		if nested, ok := item.([]interface{}); ok {
			flat = append(flat, flatten(nested).([]interface{})...)
		} else {
			flat = append(flat, item)
		}
	}
	return flat
}

// ApplyOverrides rewrites subordinate rules from a CLI override string
// of the form "<charm>:<where>[#<charm>:<where>...]". An override
// replaces the charm's whole subordinate rule.
func ApplyOverrides(rules map[string]interface{}, overrides string) error {
	if overrides == "" {
		return nil
	}
	for _, override := range strings.Split(overrides, "#") {
		name, where, ok := strings.Cut(override, ":")
		if !ok || name == "" || where == "" {
			return errors.NotValidf("subordinate override %q", override)
		}
		logger.Infof("overriding subordinate rule %s with %q", name, where)
		entry := map[string]interface{}{"where": where}
		switch section := rules["subordinates"].(type) {
		case map[interface{}]interface{}:
			section[name] = entry
		case map[string]interface{}:
			section[name] = entry
		case nil:
			rules["subordinates"] = map[string]interface{}{name: entry}
		default:
			return errors.NotValidf("subordinates section %T", section)
		}
	}
	return nil
}
