// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint

import (
	"fmt"
	"strings"

	"github.com/juju/collections/set"
)

// checkAvailabilityZones maps machines to their availability zones and
// verifies every multi unit application spreads its units evenly. The
// zone count is expected to be exactly three; a deployment reporting
// no zone information at all is a data gap, not an invalid layout.
func (l *Linter) checkAvailabilityZones() {
	machineAZ := make(map[string]string)
	azs := set.NewStrings()
	for _, id := range l.graph.MachineIDs() {
		m, ok := l.graph.Machine(id)
		if !ok {
			continue
		}
		if len(m.Hardware) == 0 {
			logger.Warningf("machine %s has no hardware info; skipping", id)
			continue
		}
		az, ok := m.AvailabilityZone()
		if !ok {
			logger.Warningf("machine %s has no availability-zone info in hardware field; skipping", id)
			continue
		}
		machineAZ[id] = az
		azs.Add(az)
	}

	if azs.IsEmpty() {
		l.collector.add(Violation{
			ID:       "az-data-gap",
			Severity: SeverityWarning,
			Tags:     []string{"zone"},
			Message:  "No availability zone information found; skipping zone balance checks",
		})
		return
	}
	if azs.Size() != 3 {
		l.collector.add(Violation{
			ID:       "AZ-invalid-number",
			Severity: SeverityError,
			Tags:     []string{"zone"},
			Message:  fmt.Sprintf("Invalid number of AZs: '%d', expecting 3", azs.Size()),
		})
		return
	}

	for _, appName := range l.graph.AppNames() {
		l.checkZoneBalance(appName, machineAZ, azs)
	}
}

// checkZoneBalance flags an application whose units leave any zone
// below an even share. Units placed in containers count against the
// zone of the container's host machine.
func (l *Linter) checkZoneBalance(appName string, machineAZ map[string]string, azs set.Strings) {
	app := l.graph.Applications[appName]
	units := len(app.Units)
	if units < 2 {
		return
	}
	counts := make(map[string]int, azs.Size())
	for _, az := range azs.Values() {
		counts[az] = 0
	}
	for _, unit := range app.UnitNames() {
		host := strings.SplitN(app.Units[unit].Machine, "/", 2)[0]
		az, ok := machineAZ[host]
		if !ok {
			logger.Errorf("cannot find machine %s in machine to AZ mapping data", host)
			continue
		}
		counts[az]++
	}

	minPerZone := units / azs.Size()
	unbalanced := false
	for _, n := range counts {
		if n < minPerZone {
			unbalanced = true
			break
		}
	}
	if !unbalanced {
		return
	}
	parts := make([]string, 0, len(counts))
	for _, az := range azs.SortedValues() {
		parts = append(parts, fmt.Sprintf("%s: %d", az, counts[az]))
	}
	l.collector.add(Violation{
		ID:       "AZ-unbalance",
		Severity: SeverityError,
		Tags:     []string{"zone", "balance"},
		Subject:  appName,
		Message: fmt.Sprintf("Application '%s' is unbalanced across AZs: %d units, deployed as: %s",
			appName, units, strings.Join(parts, ", ")),
	})
}
