// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint

import (
	"fmt"
	"strings"
	"time"

	"github.com/juju/jujulint/internal/deployment"
)

// Agents busy executing a hook get this long before an unexpected
// status is held against them.
const maxExecutionGrace = time.Hour

// statusSinceLayouts covers the timestamp forms juju writes into
// status "since" fields.
var statusSinceLayouts = []string{
	"02 Jan 2006 15:04:05Z07:00",
	time.RFC3339,
	time.RFC3339Nano,
}

// checkStatuses verifies every machine, container, application and
// unit reports the status expected of a healthy deployment.
// Subordinate unit statuses follow their principal, so only principal
// units are walked.
func (l *Linter) checkStatuses() {
	for _, id := range l.graph.MachineIDs() {
		m, ok := l.graph.Machine(id)
		if !ok {
			continue
		}
		l.checkMachineStatus("Machine", "machine", id, m)
		for _, cid := range m.ContainerIDs() {
			l.checkMachineStatus("Container", "container", cid, m.Containers[cid])
		}
	}
	for _, appName := range l.graph.AppNames() {
		app := l.graph.Applications[appName]
		l.checkStatus(appName, fmt.Sprintf("Application %s", appName),
			app.Status, "application-status", []string{"active", "unknown"})
		for _, unitName := range app.UnitNames() {
			unit := app.Units[unitName]
			l.checkStatus(unitName, fmt.Sprintf("Unit %s", unitName),
				unit.WorkloadStatus, "workload-status", []string{"active", "unknown"})
			l.checkStatus(unitName, fmt.Sprintf("Juju on unit %s", unitName),
				unit.JujuStatus, "juju-status", []string{"idle"})
		}
	}
}

func (l *Linter) checkMachineStatus(title, kind, id string, m *deployment.Machine) {
	l.checkStatus(id, fmt.Sprintf("%s %s", title, id),
		m.MachineStatus, "machine-status", []string{"running"})
	l.checkStatus(id, fmt.Sprintf("Juju on %s %s", kind, id),
		m.JujuStatus, "juju-status", []string{"started"})
}

func (l *Linter) checkStatus(subject, what string, status *deployment.StatusInfo, field string, expected []string) {
	if status == nil || status.Current == "" {
		logger.Warningf("%s has no %s field", what, field)
		return
	}
	for _, want := range expected {
		if status.Current == want {
			return
		}
	}
	if status.Current == "executing" && l.withinExecutionGrace(status.Since) {
		logger.Debugf("%s is executing within the grace period, ignoring", what)
		return
	}
	l.collector.add(Violation{
		ID:       "status-unexpected",
		Severity: SeverityError,
		Tags:     []string{"status"},
		Subject:  subject,
		Message: fmt.Sprintf("%s has status '%s' (since: %s, message: %s); (We expected: %s)",
			what, status.Current, status.Since, status.Message, strings.Join(expected, ", ")),
	})
}

// withinExecutionGrace reports whether a status became "executing"
// recently enough to let it settle. An unparseable timestamp grants no
// grace.
func (l *Linter) withinExecutionGrace(since string) bool {
	if since == "" {
		return false
	}
	t, err := parseStatusSince(since)
	if err != nil {
		logger.Debugf("cannot parse status timestamp %q: %v", since, err)
		return false
	}
	return l.clock.Now().Sub(t) <= maxExecutionGrace
}

func parseStatusSince(since string) (time.Time, error) {
	var err error
	for _, layout := range statusSinceLayouts {
		var t time.Time
		if t, err = time.Parse(layout, since); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
