// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint_test

import (
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type relationSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&relationSuite{})

// relationsStatusYAML relates nrpe to ubuntu but not to mysql, and
// leaves machine 1 without an nrpe unit.
const relationsStatusYAML = `
model:
  name: m
  controller: c
machines:
  "0": {}
  "1": {}
applications:
  ubuntu:
    charm: cs:ubuntu-18
    endpoint-bindings:
      "": alpha
      nrpe-external-master: alpha
    relations:
      nrpe-external-master: [nrpe]
    units:
      ubuntu/0:
        machine: "0"
        subordinates:
          nrpe/0: {}
  mysql:
    charm: cs:mysql-5
    endpoint-bindings:
      "": alpha
      nrpe-external-master: alpha
    units:
      mysql/0:
        machine: "1"
  nrpe:
    charm: cs:nrpe-70
    subordinate-to: [ubuntu]
    endpoint-bindings:
      "": alpha
      monitors: alpha
      nrpe-external-master: alpha
    relations:
      nrpe-external-master: [ubuntu]
`

func (s *relationSuite) TestMissingRelations(c *gc.C) {
	report := runLint(c, `
relations:
- charm: nrpe
  check:
  - ["nrpe:nrpe-external-master", "*:nrpe-external-master"]
`[1:], relationsStatusYAML)
	c.Check(messagesByID(report, "missing-relations"), jc.DeepEquals, []string{
		"Endpoint 'nrpe:nrpe-external-master' is missing relations with: mysql",
	})
}

func (s *relationSuite) TestMissingRelationsException(c *gc.C) {
	report := runLint(c, `
relations:
- charm: nrpe
  check:
  - ["nrpe:nrpe-external-master", "*:nrpe-external-master"]
  exception: [mysql]
`[1:], relationsStatusYAML)
	c.Check(violationsByID(report, "missing-relations"), gc.HasLen, 0)
}

func (s *relationSuite) TestMissingRelationsSatisfied(c *gc.C) {
	report := runLint(c, `
relations:
- charm: nrpe
  check:
  - ["nrpe:nrpe-external-master", "*:nrpe-external-master"]
`[1:], `
applications:
  ubuntu:
    charm: cs:ubuntu-18
    endpoint-bindings:
      "": alpha
      nrpe-external-master: alpha
    relations:
      nrpe-external-master: [nrpe]
  nrpe:
    charm: cs:nrpe-70
    subordinate-to: [ubuntu]
    endpoint-bindings:
      "": alpha
      nrpe-external-master: alpha
    relations:
      nrpe-external-master: [ubuntu]
`[1:])
	c.Check(violationsByID(report, "missing-relations"), gc.HasLen, 0)
}

func (s *relationSuite) TestNamedTargetCharm(c *gc.C) {
	report := runLint(c, `
relations:
- charm: nrpe
  check:
  - ["mysql:nrpe-external-master", "nrpe:nrpe-external-master"]
`[1:], relationsStatusYAML)
	c.Check(messagesByID(report, "missing-relations"), jc.DeepEquals, []string{
		"Endpoint 'nrpe:nrpe-external-master' is missing relations with: mysql",
	})
}

func (s *relationSuite) TestJujuInfoTarget(c *gc.C) {
	// juju-info never shows in endpoint bindings; the default binding
	// stands in for it, so the wildcard still reaches every app.
	report := runLint(c, `
relations:
- charm: nrpe
  check:
  - ["nrpe:nrpe-external-master", "*:juju-info"]
`[1:], relationsStatusYAML)
	c.Check(messagesByID(report, "missing-relations"), jc.DeepEquals, []string{
		"Endpoint 'nrpe:nrpe-external-master' is missing relations with: mysql",
	})
}

func (s *relationSuite) TestUnknownCharmSkipped(c *gc.C) {
	report := runLint(c, `
relations:
- charm: graylog
  check:
  - ["graylog:beats", "*:juju-info"]
`[1:], relationsStatusYAML)
	c.Check(violationsByID(report, "missing-relations"), gc.HasLen, 0)
}

func (s *relationSuite) TestUnknownEndpointSkipped(c *gc.C) {
	report := runLint(c, `
relations:
- charm: nrpe
  check:
  - ["nrpe:bogus-endpoint", "*:nrpe-external-master"]
`[1:], relationsStatusYAML)
	c.Check(violationsByID(report, "missing-relations"), gc.HasLen, 0)
}

func (s *relationSuite) TestForbiddenRelation(c *gc.C) {
	report := runLint(c, `
relations:
- charm: nrpe
  not-exist:
  - ["nrpe:nrpe-external-master", "ubuntu:nrpe-external-master"]
`[1:], relationsStatusYAML)
	c.Check(messagesByID(report, "relation-exist"), jc.DeepEquals, []string{
		"Relation(s) nrpe:nrpe-external-master - ubuntu:nrpe-external-master should not exist",
	})
}

func (s *relationSuite) TestForbiddenRelationAbsent(c *gc.C) {
	report := runLint(c, `
relations:
- charm: nrpe
  not-exist:
  - ["nrpe:nrpe-external-master", "mysql:nrpe-external-master"]
`[1:], relationsStatusYAML)
	c.Check(violationsByID(report, "relation-exist"), gc.HasLen, 0)
}

func (s *relationSuite) TestUbiquitousCoverage(c *gc.C) {
	report := runLint(c, `
relations:
- charm: nrpe
  ubiquitous: true
`[1:], relationsStatusYAML)
	c.Check(messagesByID(report, "missing-machine"), jc.DeepEquals, []string{
		"Charm 'nrpe' missing on machines: 1",
	})
}

func (s *relationSuite) TestUbiquitousFromSubordinateRule(c *gc.C) {
	// A subordinate rule marked ubiquitous feeds the machine coverage
	// check without an explicit relations rule.
	report := runLint(c, `
subordinates:
  nrpe:
    where: all
    ubiquitous: true
`[1:], relationsStatusYAML)
	c.Check(messagesByID(report, "missing-machine"), jc.DeepEquals, []string{
		"Charm 'nrpe' missing on machines: 1",
	})
	c.Check(messagesByID(report, "ops-subordinate-missing"), jc.DeepEquals, []string{
		"Subordinate 'nrpe' is missing for application(s): 'mysql'",
	})
}
