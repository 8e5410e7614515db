// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint_test

import (
	"fmt"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/jujulint/internal/lint"
)

type statusSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&statusSuite{})

const noRulesYAML = "known charms: [ubuntu]"

func (s *statusSuite) TestHealthyStatuses(c *gc.C) {
	report := runLint(c, noRulesYAML, `
machines:
  "0":
    juju-status: {current: started}
    machine-status: {current: running}
applications:
  ubuntu:
    charm: cs:ubuntu-18
    application-status: {current: active}
    units:
      ubuntu/0:
        machine: "0"
        workload-status: {current: active}
        juju-status: {current: idle}
`[1:])
	c.Check(violationsByID(report, "status-unexpected"), gc.HasLen, 0)
}

func (s *statusSuite) TestMachineAgentDown(c *gc.C) {
	report := runLint(c, noRulesYAML, `
machines:
  "0":
    juju-status: {current: down, since: "01 Mar 2026 12:00:00Z"}
    machine-status: {current: running}
applications:
  ubuntu:
    charm: cs:ubuntu-18
`[1:])
	c.Check(messagesByID(report, "status-unexpected"), jc.DeepEquals, []string{
		"Juju on machine 0 has status 'down' (since: 01 Mar 2026 12:00:00Z, message: ); (We expected: started)",
	})
}

func (s *statusSuite) TestContainerChecked(c *gc.C) {
	report := runLint(c, noRulesYAML, `
machines:
  "0":
    juju-status: {current: started}
    machine-status: {current: running}
    containers:
      0/lxd/0:
        juju-status: {current: started}
        machine-status: {current: stopped, since: "01 Mar 2026 12:00:00Z", message: shutting down}
applications:
  ubuntu:
    charm: cs:ubuntu-18
`[1:])
	c.Check(messagesByID(report, "status-unexpected"), jc.DeepEquals, []string{
		"Container 0/lxd/0 has status 'stopped' (since: 01 Mar 2026 12:00:00Z, message: shutting down); (We expected: running)",
	})
}

func (s *statusSuite) TestUnitWorkloadBlocked(c *gc.C) {
	report := runLint(c, noRulesYAML, `
applications:
  ubuntu:
    charm: cs:ubuntu-18
    application-status: {current: active}
    units:
      ubuntu/0:
        machine: "0"
        workload-status: {current: blocked, since: "01 Mar 2026 12:00:00Z", message: config missing}
        juju-status: {current: idle}
`[1:])
	c.Check(messagesByID(report, "status-unexpected"), jc.DeepEquals, []string{
		"Unit ubuntu/0 has status 'blocked' (since: 01 Mar 2026 12:00:00Z, message: config missing); (We expected: active, unknown)",
	})
}

func (s *statusSuite) TestApplicationStatus(c *gc.C) {
	report := runLint(c, noRulesYAML, `
applications:
  ubuntu:
    charm: cs:ubuntu-18
    application-status: {current: error, since: "01 Mar 2026 12:00:00Z"}
`[1:])
	c.Check(messagesByID(report, "status-unexpected"), jc.DeepEquals, []string{
		"Application ubuntu has status 'error' (since: 01 Mar 2026 12:00:00Z, message: ); (We expected: active, unknown)",
	})
}

func (s *statusSuite) TestUnknownStatusAccepted(c *gc.C) {
	report := runLint(c, noRulesYAML, `
applications:
  ubuntu:
    charm: cs:ubuntu-18
    application-status: {current: unknown}
`[1:])
	c.Check(violationsByID(report, "status-unexpected"), gc.HasLen, 0)
}

func (s *statusSuite) executingReport(c *gc.C, since, now time.Time) *lint.Report {
	deploy := fmt.Sprintf(`
applications:
  ubuntu:
    charm: cs:ubuntu-18
    application-status: {current: active}
    units:
      ubuntu/0:
        machine: "0"
        workload-status: {current: executing, since: %q}
        juju-status: {current: idle}
`[1:], since.Format("02 Jan 2006 15:04:05Z07:00"))
	return runLint(c, noRulesYAML, deploy, lint.Config{
		Clock: testclock.NewClock(now),
	})
}

func (s *statusSuite) TestExecutingWithinGrace(c *gc.C) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	report := s.executingReport(c, now.Add(-30*time.Minute), now)
	c.Check(violationsByID(report, "status-unexpected"), gc.HasLen, 0)
}

func (s *statusSuite) TestExecutingBeyondGrace(c *gc.C) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	report := s.executingReport(c, now.Add(-2*time.Hour), now)
	violations := violationsByID(report, "status-unexpected")
	c.Assert(violations, gc.HasLen, 1)
	c.Check(violations[0].Subject, gc.Equals, "ubuntu/0")
}

func (s *statusSuite) TestExecutingWithoutTimestamp(c *gc.C) {
	report := runLint(c, noRulesYAML, `
applications:
  ubuntu:
    charm: cs:ubuntu-18
    application-status: {current: active}
    units:
      ubuntu/0:
        machine: "0"
        workload-status: {current: executing}
        juju-status: {current: idle}
`[1:])
	// No timestamp means no grace.
	c.Check(violationsByID(report, "status-unexpected"), gc.HasLen, 1)
}

func (s *statusSuite) TestSubordinateUnitsNotChecked(c *gc.C) {
	report := runLint(c, noRulesYAML, `
applications:
  ubuntu:
    charm: cs:ubuntu-18
    application-status: {current: active}
    units:
      ubuntu/0:
        machine: "0"
        workload-status: {current: active}
        juju-status: {current: idle}
        subordinates:
          nrpe/0:
            workload-status: {current: blocked}
            juju-status: {current: idle}
  nrpe:
    charm: cs:nrpe-70
    subordinate-to: [ubuntu]
    application-status: {current: active}
`[1:])
	c.Check(violationsByID(report, "status-unexpected"), gc.HasLen, 0)
}
