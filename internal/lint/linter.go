// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package lint evaluates a policy document against a deployment graph.
// All checks traverse the graph in sorted order, so two runs over the
// same input produce the same violations in the same order.
package lint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/naturalsort"

	"github.com/juju/jujulint/internal/deployment"
	"github.com/juju/jujulint/internal/policy"
)

var logger = loggo.GetLogger("jujulint.lint")

// Config holds the linter dependencies.
type Config struct {
	// Policy is the parsed rules document.
	Policy *policy.Document

	// CloudType forces the cloud profile. When empty it is detected
	// from the deployed charms.
	CloudType policy.CloudType

	// Clock is used for status grace periods. Defaults to the wall
	// clock.
	Clock clock.Clock

	// Name, Controller and Model label the report. Controller and
	// Model fall back to what the deployment document carries.
	Name       string
	Controller string
	Model      string

	// Rules is the rules file path, echoed in the report.
	Rules string
}

// Validate returns an error if the configuration is incomplete.
func (c Config) Validate() error {
	if c.Policy == nil {
		return errors.NotValidf("nil Policy")
	}
	return nil
}

// Linter checks one deployment against a policy document. A Linter is
// single-use: create a new one for each deployment.
type Linter struct {
	config Config
	policy *policy.Document
	cloud  policy.CloudType
	clock  clock.Clock

	graph     *deployment.Graph
	collector *collector

	missingSubs    map[string]set.Strings
	extraneousSubs map[string]set.Strings
	duellingSubs   map[string]set.Strings
}

// New returns a Linter for the given configuration.
func New(config Config) (*Linter, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	return &Linter{
		config: config,
		policy: config.Policy,
		cloud:  config.CloudType,
		clock:  config.Clock,
	}, nil
}

// Run lints the deployment and returns the report. Status documents
// get the full treatment; bundles get the space binding checks instead
// of status, relation and AZ checks, which need live model data.
func (l *Linter) Run(graph *deployment.Graph) *Report {
	l.graph = graph
	l.collector = &collector{}
	l.missingSubs = make(map[string]set.Strings)
	l.extraneousSubs = make(map[string]set.Strings)
	l.duellingSubs = make(map[string]set.Strings)

	report := &Report{
		Name:       l.config.Name,
		Controller: l.config.Controller,
		Model:      l.config.Model,
		Rules:      l.config.Rules,
		Violations: []Violation{},
	}
	if report.Controller == "" {
		report.Controller = graph.ControllerName
	}
	if report.Model == "" {
		report.Model = graph.ModelName
	}

	if len(graph.Applications) == 0 {
		logger.Warningf("deployment contains no applications, skipping")
		return report
	}

	for _, app := range graph.UnmappedApps() {
		l.collector.add(Violation{
			ID:       "charm-not-mapped",
			Severity: SeverityWarning,
			Tags:     []string{"charm", "mapped", "parsing"},
			Subject:  app,
			Message:  fmt.Sprintf("Could not detect which charm is used for application %s", app),
		})
	}

	l.detectCloudType()
	l.checkConfiguration()
	l.checkSubordinates()
	l.checkCharms()

	if graph.HasRelations {
		l.checkSpaces()
	} else {
		logger.Debugf("no bundle relations; assuming a status document")
		l.checkRelations()
		l.checkAvailabilityZones()
		l.checkStatuses()
	}
	l.results()

	report.Violations = append(report.Violations, l.collector.violations...)
	report.Summary = Summary{Errors: report.Errors(), Warnings: report.Warnings()}
	return report
}

// typicalCloudCharms drives cloud type detection: two or more matches
// from a set are taken as that cloud.
var typicalCloudCharms = []struct {
	cloud  policy.CloudType
	charms set.Strings
}{{
	cloud: policy.CloudTypeOpenStack,
	charms: set.NewStrings(
		"keystone", "nova-compute", "nova-cloud-controller",
		"glance", "openstack-dashboard", "neutron-api",
	),
}, {
	cloud: policy.CloudTypeKubernetes,
	charms: set.NewStrings(
		"kubernetes-worker", "kubernetes-control-plane",
		"containerd", "calico", "canal", "etcd",
	),
}}

func (l *Linter) detectCloudType() {
	if l.cloud != "" {
		if l.cloud != policy.CloudTypeOpenStack && l.cloud != policy.CloudTypeKubernetes {
			logger.Warningf("cloud type %q is unknown", l.cloud)
		}
		return
	}
	charms := l.graph.Charms()
	for _, typical := range typicalCloudCharms {
		match := charms.Intersection(typical.charms)
		if match.Size() >= 2 {
			logger.Infof("setting cloud type to %q; deployment has: %s",
				typical.cloud, strings.Join(match.SortedValues(), ", "))
			l.cloud = typical.cloud
			return
		}
	}
}

// results emits the violations accumulated by the subordinate checks.
// They are grouped per subordinate charm rather than per machine, so
// one rule produces one violation however many placements miss it.
func (l *Linter) results() {
	for _, sub := range sortedKeys(l.missingSubs) {
		principals := strings.Join(l.missingSubs[sub].SortedValues(), ", ")
		l.collector.add(Violation{
			ID:       "ops-subordinate-missing",
			Severity: SeverityError,
			Tags:     []string{"missing", "ops", "charm", "mandatory", "subordinate"},
			Subject:  sub,
			Message:  fmt.Sprintf("Subordinate '%s' is missing for application(s): '%s'", sub, principals),
		})
	}
	for _, sub := range sortedKeys(l.extraneousSubs) {
		principals := strings.Join(l.extraneousSubs[sub].SortedValues(), ", ")
		l.collector.add(Violation{
			ID:       "subordinate-extraneous",
			Severity: SeverityError,
			Tags:     []string{"extraneous", "charm", "subordinate"},
			Subject:  sub,
			Message:  fmt.Sprintf("Application(s) '%s' has extraneous subordinate '%s'", principals, sub),
		})
	}
	for _, sub := range sortedKeys(l.duellingSubs) {
		machines := l.duellingSubs[sub].Values()
		naturalsort.Sort(machines)
		l.collector.add(Violation{
			ID:       "subordinate-duplicate",
			Severity: SeverityError,
			Tags:     []string{"duplicate", "charm", "subordinate"},
			Subject:  sub,
			Message:  fmt.Sprintf("Subordinate '%s' is duplicated on machines: '%s'", sub, strings.Join(machines, ", ")),
		})
	}
}

func sortedKeys(m map[string]set.Strings) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
