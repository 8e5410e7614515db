// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package policy holds the typed, read-only representation of a lint
// rules document. A Document is built once by Parse from the merged
// mapping produced by the rules loader and is never mutated afterwards;
// the checkers only consult it through lookup methods.
package policy

import (
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("jujulint.policy")

// CloudType identifies the cloud profile a deployment is audited
// against. The zero value means no specific profile (generic rules
// only).
type CloudType string

const (
	CloudTypeOpenStack  CloudType = "openstack"
	CloudTypeKubernetes CloudType = "kubernetes"
)

// Role classifies a charm within a cloud profile.
type Role string

const (
	RoleMandatory Role = "mandatory"
	RoleOptional  Role = "optional"
	RoleUnknown   Role = "unknown"
)

// Document is a parsed rules document. All lookups are safe for
// concurrent use once Parse has returned.
type Document struct {
	subordinates map[string]*SubordinateRule

	knownCharms    set.Strings
	haveKnown      bool
	opsMandatory   set.Strings
	opsOptional    set.Strings
	opsSubordinate set.Strings

	cloudMandatory    map[CloudType]set.Strings
	cloudOpsMandatory map[CloudType]set.Strings

	configRules map[string]map[string]OptionRule
	cloudConfig map[CloudType]map[string]map[string]OptionRule

	saas          set.Strings
	relationRules []RelationRule
	spaceChecks   SpaceChecks
}

// SubordinateRule returns the placement rule for the given subordinate
// charm, if one is defined.
func (d *Document) SubordinateRule(charm string) (*SubordinateRule, bool) {
	rule, ok := d.subordinates[charm]
	return rule, ok
}

// SubordinateCharms returns the charms with subordinate rules, sorted
// so that checker traversal is deterministic.
func (d *Document) SubordinateCharms() []string {
	charms := make([]string, 0, len(d.subordinates))
	for charm := range d.subordinates {
		charms = append(charms, charm)
	}
	sort.Strings(charms)
	return charms
}

// HasKnownCharms reports whether the document carries a "known charms"
// listing at all. Without one the unknown-charm check is skipped.
func (d *Document) HasKnownCharms() bool {
	return d.haveKnown
}

// KnownCharm reports whether the charm appears in the known charms
// listing, across all profiles.
func (d *Document) KnownCharm(charm string) bool {
	return d.knownCharms.Contains(charm)
}

// OpsMandatory returns the cloud-agnostic mandatory charm set, sorted.
func (d *Document) OpsMandatory() []string {
	return d.opsMandatory.SortedValues()
}

// CloudMandatory returns the mandatory charms for the given cloud
// profile, sorted.
func (d *Document) CloudMandatory(cloud CloudType) []string {
	return d.cloudMandatory[cloud].SortedValues()
}

// CloudOpsMandatory returns the operations charms mandatory on the
// given cloud profile, sorted.
func (d *Document) CloudOpsMandatory(cloud CloudType) []string {
	return d.cloudOpsMandatory[cloud].SortedValues()
}

// CharmRole classifies a charm for the given cloud profile.
func (d *Document) CharmRole(cloud CloudType, charm string) Role {
	if d.opsMandatory.Contains(charm) ||
		d.cloudMandatory[cloud].Contains(charm) ||
		d.cloudOpsMandatory[cloud].Contains(charm) {
		return RoleMandatory
	}
	if d.opsOptional.Contains(charm) || d.opsSubordinate.Contains(charm) || d.knownCharms.Contains(charm) {
		return RoleOptional
	}
	return RoleUnknown
}

// ConfigRules returns the config assertions for a charm, with any
// cloud-profile rules merged over the generic ones. Option keys are
// unique; a cloud rule for the same option replaces the generic rule.
func (d *Document) ConfigRules(cloud CloudType, charm string) map[string]OptionRule {
	merged := make(map[string]OptionRule)
	for option, rule := range d.configRules[charm] {
		merged[option] = rule
	}
	if cloud != "" {
		for option, rule := range d.cloudConfig[cloud][charm] {
			merged[option] = rule
		}
	}
	return merged
}

// SaaS returns the charms that may be satisfied by a cross-model
// (SAAS) application instead of a local deployment.
func (d *Document) SaaS() set.Strings {
	return d.saas
}

// RelationRules returns the explicit relation rules plus the rules
// synthesised from ubiquitous subordinate entries.
func (d *Document) RelationRules() []RelationRule {
	return d.relationRules
}

// SpaceChecks returns the enforce/ignore lists for the space checker.
func (d *Document) SpaceChecks() SpaceChecks {
	return d.spaceChecks
}

// Enforced reports whether a mismatch on the given charm endpoints is
// covered by an enforce rule, matching either single endpoint or the
// unordered pair.
func (d *Document) Enforced(first, second string) bool {
	c := d.spaceChecks
	if c.EnforceEndpoints.Contains(first) || c.EnforceEndpoints.Contains(second) {
		return true
	}
	for _, pair := range c.EnforceRelations {
		if pair.Matches(first, second) {
			return true
		}
	}
	return false
}

// Ignored reports whether a mismatch on the given charm endpoints is
// covered by an ignore rule. Enforced always wins over Ignored.
func (d *Document) Ignored(first, second string) bool {
	c := d.spaceChecks
	if c.IgnoreEndpoints.Contains(first) || c.IgnoreEndpoints.Contains(second) {
		return true
	}
	for _, pair := range c.IgnoreRelations {
		if pair.Matches(first, second) {
			return true
		}
	}
	return false
}

// SpaceChecks holds the space mismatch classification lists. Endpoints
// are "charm:endpoint" strings; relations are unordered endpoint pairs.
type SpaceChecks struct {
	EnforceEndpoints set.Strings
	EnforceRelations []EndpointPair
	IgnoreEndpoints  set.Strings
	IgnoreRelations  []EndpointPair
}

// EndpointPair is an unordered pair of "name:endpoint" strings.
type EndpointPair struct {
	First  string
	Second string
}

// Matches reports whether the pair equals the given endpoints in
// either order.
func (p EndpointPair) Matches(first, second string) bool {
	return (p.First == first && p.Second == second) ||
		(p.First == second && p.Second == first)
}

// String implements fmt.Stringer.
func (p EndpointPair) String() string {
	return p.First + " - " + p.Second
}

// SubordinateRule describes where a subordinate charm must (or must
// not) be colocated.
type SubordinateRule struct {
	Charm             string
	Scope             Scope
	HostSuffixes      []string
	ContainerSuffixes []string
	Exceptions        set.Strings
	AllowMultiple     bool

	// Ubiquitous requires the subordinate to establish an explicit
	// relation, named by Checks, wherever both charms co-occur.
	Ubiquitous bool
	Checks     []EndpointPair
}

// RelationRule requires (or forbids) specific relations for a charm.
type RelationRule struct {
	Charm      string
	Checks     []EndpointPair
	NotExist   []EndpointPair
	Exceptions set.Strings
	Ubiquitous bool
}

// SplitEndpoint splits a "name:endpoint" string. The second return is
// false when there is no colon separator.
func SplitEndpoint(s string) (string, string, bool) {
	i := strings.Index(s, ":")
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}
