// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint

import (
	"strings"

	"github.com/juju/collections/set"

	"github.com/juju/jujulint/internal/policy"
)

// checkSubordinates walks every placement target against every
// subordinate rule, accumulating missing and extraneous placements
// for results to report grouped by subordinate charm.
func (l *Linter) checkSubordinates() {
	allSubs := set.NewStrings()
	for _, machine := range l.graph.PlacementIDs() {
		allSubs = allSubs.Union(l.graph.SubsOn(machine))
	}

	for _, charm := range l.policy.SubordinateCharms() {
		rule, ok := l.policy.SubordinateRule(charm)
		if !ok {
			continue
		}
		for _, machine := range l.graph.PlacementIDs() {
			l.checkSubordinateOn(rule, machine, allSubs)
		}
	}
	l.checkDuplicateSubordinates()
}

func (l *Linter) checkSubordinateOn(rule *policy.SubordinateRule, machine string, allSubs set.Strings) {
	present := l.graph.SubsOn(machine)
	apps := l.graph.AppsOn(machine)
	container := strings.Contains(machine, "/")

	switch rule.Scope.Kind {
	case policy.ScopeOn:
		if !apps.Contains(rule.Scope.Charm) {
			return
		}
	case policy.ScopeAllExcept:
		if apps.Contains(rule.Scope.Charm) {
			return
		}
	case policy.ScopeHostOnly:
		if container {
			if l.subPresent(rule.Charm, present) {
				accumulate(l.extraneousSubs, rule.Charm, apps)
			}
			return
		}
	case policy.ScopeMetalOnly:
		if !l.machineIsMetal(machine) {
			if l.subPresent(rule.Charm, present) {
				accumulate(l.extraneousSubs, rule.Charm, apps)
			}
			return
		}
	case policy.ScopeAllOrNothing:
		if !l.subPresent(rule.Charm, allSubs) {
			return
		}
	case policy.ScopeContainerAware:
		l.checkContainerAware(rule, container, present, apps)
		return
	}

	// The subordinate must be beside everything here, under any
	// application name carrying its charm.
	if !l.subPresent(rule.Charm, present) {
		accumulate(l.missingSubs, rule.Charm, apps)
	}
}

// checkContainerAware accepts the suffixed variant for the machine's
// context, then any application of the charm, then an exception
// landlord on the machine. Only when all three miss is the
// subordinate recorded missing.
func (l *Linter) checkContainerAware(rule *policy.SubordinateRule, container bool, present, apps set.Strings) {
	suffixes := rule.HostSuffixes
	if container {
		suffixes = rule.ContainerSuffixes
	}
	for _, suffix := range suffixes {
		if present.Contains(rule.Charm + "-" + suffix) {
			return
		}
	}
	if l.subPresent(rule.Charm, present) {
		return
	}
	if !rule.Exceptions.Intersection(apps).IsEmpty() {
		return
	}
	accumulate(l.missingSubs, rule.Charm, apps)
}

// checkDuplicateSubordinates flags a subordinate landing more than
// once on a machine, unless its rule allows multiple instances.
// Subordinates without a rule are left alone.
func (l *Linter) checkDuplicateSubordinates() {
	for _, machine := range l.graph.PlacementIDs() {
		for _, subApp := range l.graph.SubsOn(machine).SortedValues() {
			if l.graph.SubCount(machine, subApp) < 2 {
				continue
			}
			charm, ok := l.graph.Charm(subApp)
			if !ok {
				charm = subApp
			}
			rule, ok := l.policy.SubordinateRule(charm)
			if !ok {
				logger.Debugf("subordinate %s duplicated on machine %s has no rule, ignoring", subApp, machine)
				continue
			}
			if rule.AllowMultiple {
				continue
			}
			accumulate(l.duellingSubs, subApp, set.NewStrings(machine))
		}
	}
}

// subPresent reports whether the subordinate charm is among the given
// application names, either directly or through an application
// deploying that charm under another name.
func (l *Linter) subPresent(charm string, apps set.Strings) bool {
	if apps.Contains(charm) {
		return true
	}
	return !l.graph.CharmApps(charm).Intersection(apps).IsEmpty()
}

// machineIsMetal treats placement targets missing from the machine
// listing as bare metal, matching how sparse status output reads.
func (l *Linter) machineIsMetal(id string) bool {
	if m, ok := l.graph.Machine(id); ok {
		return m.IsMetal()
	}
	return !strings.Contains(id, "/")
}

func accumulate(dest map[string]set.Strings, key string, members set.Strings) {
	if members.IsEmpty() {
		return
	}
	current, ok := dest[key]
	if !ok {
		current = set.NewStrings()
	}
	dest[key] = current.Union(members)
}
