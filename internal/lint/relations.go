// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint

import (
	"fmt"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/naturalsort"

	"github.com/juju/jujulint/internal/policy"
)

// checkRelations applies the relation rules: required relations per
// charm endpoint, forbidden relations, and machine coverage for
// ubiquitous charms. Only status documents carry the per application
// relation data this needs.
func (l *Linter) checkRelations() {
	for _, rule := range l.policy.RelationRules() {
		for _, pair := range rule.Checks {
			l.checkRequiredRelation(rule, pair)
		}
		for _, pair := range rule.NotExist {
			l.checkForbiddenRelation(rule, pair)
		}
		if rule.Ubiquitous {
			l.checkUbiquitous(rule)
		}
	}
}

// checkRequiredRelation verifies one required relation pair. One side
// must name the rule's charm; the other side is the target, either a
// charm or the * wildcard for every application binding the endpoint.
// Applications carrying the target endpoint but unrelated to the charm
// are reported, less the rule's exceptions.
func (l *Linter) checkRequiredRelation(rule policy.RelationRule, pair policy.EndpointPair) {
	name0, ep0, ok := l.endpointSide(pair.First)
	if !ok {
		return
	}
	name1, ep1, ok := l.endpointSide(pair.Second)
	if !ok {
		return
	}

	var charmEndpoint, targetName, targetEndpoint string
	switch rule.Charm {
	case name0:
		charmEndpoint, targetName, targetEndpoint = ep0, name1, ep1
	case name1:
		charmEndpoint, targetName, targetEndpoint = ep1, name0, ep0
	default:
		logger.Warningf("relation rule for %s does not name the charm in pair %s, skipping relation check",
			rule.Charm, pair)
		return
	}

	withEndpoint := l.appsWithEndpoint(rule.Charm, targetName, targetEndpoint)
	related := l.appsRelated(l.graph.CharmApps(rule.Charm), charmEndpoint)
	missing := withEndpoint.Difference(related).Difference(rule.Exceptions)
	if missing.IsEmpty() {
		return
	}
	l.collector.add(Violation{
		ID:       "missing-relations",
		Severity: SeverityError,
		Tags:     []string{"relation", "missing"},
		Subject:  rule.Charm,
		Message: fmt.Sprintf("Endpoint '%s:%s' is missing relations with: %s",
			rule.Charm, charmEndpoint, strings.Join(missing.SortedValues(), ", ")),
	})
}

// checkForbiddenRelation reports a not-exist pair found live in the
// deployment.
func (l *Linter) checkForbiddenRelation(rule policy.RelationRule, pair policy.EndpointPair) {
	name0, ep0, hasColon := policy.SplitEndpoint(pair.First)
	if !hasColon {
		logger.Warningf("relation rule endpoint %q is not of the form name:endpoint, skipping relation check",
			pair.First)
		return
	}
	name1, _, _ := policy.SplitEndpoint(pair.Second)
	targets := l.graph.CharmApps(name1)
	for _, app := range l.graph.CharmApps(name0).SortedValues() {
		for _, peer := range l.graph.Applications[app].Endpoints[ep0] {
			if peer != name1 && !targets.Contains(peer) {
				continue
			}
			l.collector.add(Violation{
				ID:       "relation-exist",
				Severity: SeverityError,
				Tags:     []string{"relation", "forbidden"},
				Subject:  rule.Charm,
				Message:  fmt.Sprintf("Relation(s) %s should not exist", pair),
			})
			return
		}
	}
}

// checkUbiquitous requires the charm on every machine and container.
func (l *Linter) checkUbiquitous(rule policy.RelationRule) {
	var missing []string
	for _, machine := range l.allMachines() {
		present := l.graph.AppsOn(machine).Union(l.graph.SubsOn(machine))
		if !l.subPresent(rule.Charm, present) {
			missing = append(missing, machine)
		}
	}
	if len(missing) == 0 {
		return
	}
	naturalsort.Sort(missing)
	l.collector.add(Violation{
		ID:       "missing-machine",
		Severity: SeverityError,
		Tags:     []string{"relation", "ubiquitous"},
		Subject:  rule.Charm,
		Message: fmt.Sprintf("Charm '%s' missing on machines: %s",
			rule.Charm, strings.Join(missing, ", ")),
	})
}

// endpointSide validates one side of a relation rule pair against the
// deployment. The juju-info endpoint is implicit on every application
// and never appears in endpoint bindings, so it always passes.
func (l *Linter) endpointSide(side string) (name, endpoint string, ok bool) {
	name, endpoint, hasColon := policy.SplitEndpoint(side)
	if !hasColon {
		logger.Warningf("relation rule endpoint %q is not of the form name:endpoint, skipping relation check", side)
		return "", "", false
	}
	if name == "*" {
		return name, endpoint, true
	}
	apps := l.graph.CharmApps(name)
	if apps.IsEmpty() {
		logger.Warningf("%s not found in the deployment, skipping relation check", name)
		return "", "", false
	}
	if endpoint == "juju-info" {
		return name, endpoint, true
	}
	for _, app := range apps.SortedValues() {
		if _, found := l.graph.Applications[app].Bindings[endpoint]; found {
			return name, endpoint, true
		}
	}
	logger.Warningf("endpoint %s not found on %s, skipping relation check", endpoint, name)
	return "", "", false
}

// appsWithEndpoint returns the applications a required relation should
// reach: for the * wildcard every application binding the endpoint
// except the charm's own, otherwise the applications deploying the
// named target charm that bind it.
func (l *Linter) appsWithEndpoint(charm, name, endpoint string) set.Strings {
	result := set.NewStrings()
	if name == "*" {
		for _, app := range l.graph.AppNames() {
			if l.bindsEndpoint(app, endpoint) {
				result.Add(app)
			}
		}
		return result.Difference(l.graph.CharmApps(charm))
	}
	for _, app := range l.graph.CharmApps(name).SortedValues() {
		if l.bindsEndpoint(app, endpoint) {
			result.Add(app)
		}
	}
	return result
}

// bindsEndpoint reports whether the application carries the endpoint
// in its bindings. The implicit juju-info endpoint never appears
// there; the default binding stands in for it.
func (l *Linter) bindsEndpoint(app, endpoint string) bool {
	if endpoint == "juju-info" {
		endpoint = ""
	}
	_, ok := l.graph.Applications[app].Bindings[endpoint]
	return ok
}

// appsRelated collects every application related to the given
// applications over the named endpoint.
func (l *Linter) appsRelated(apps set.Strings, endpoint string) set.Strings {
	related := set.NewStrings()
	for _, app := range apps.SortedValues() {
		for _, peer := range l.graph.Applications[app].Endpoints[endpoint] {
			related.Add(peer)
		}
	}
	return related
}

// allMachines lists every placement target in the machine listing,
// hosts first then their containers.
func (l *Linter) allMachines() []string {
	var ids []string
	for _, id := range l.graph.MachineIDs() {
		ids = append(ids, id)
		if machine, ok := l.graph.Machine(id); ok {
			ids = append(ids, machine.ContainerIDs()...)
		}
	}
	return ids
}
