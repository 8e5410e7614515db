// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint

import (
	"fmt"
	"strings"

	"github.com/juju/jujulint/internal/policy"
)

// checkCharms audits the charm population: nothing unrecognised when
// the rules declare a known set, and nothing mandatory missing for the
// operations baseline or the detected cloud profile.
func (l *Linter) checkCharms() {
	if l.policy.HasKnownCharms() {
		for _, charm := range l.graph.Charms().SortedValues() {
			if l.policy.KnownCharm(charm) {
				continue
			}
			l.collector.add(Violation{
				ID:       "unrecognised-charm",
				Severity: SeverityError,
				Tags:     []string{"charm", "unrecognised"},
				Subject:  charm,
				Message:  fmt.Sprintf("Charm '%s' not recognised", charm),
			})
		}
	}

	l.checkMandatory(l.policy.OpsMandatory(), "ops-charm-missing", "Ops charm '%s' is missing", true)
	switch l.cloud {
	case policy.CloudTypeOpenStack:
		l.checkMandatory(l.policy.CloudMandatory(l.cloud),
			"openstack-charm-missing", "Openstack charm '%s' is missing", false)
		l.checkMandatory(l.policy.CloudOpsMandatory(l.cloud),
			"openstack-ops-charm-missing", "Openstack ops charm '%s' is missing", false)
	case policy.CloudTypeKubernetes:
		l.checkMandatory(l.policy.CloudMandatory(l.cloud),
			"kubernetes-charm-missing", "Kubernetes charm '%s' is missing", false)
		l.checkMandatory(l.policy.CloudOpsMandatory(l.cloud),
			"kubernetes-ops-charm-missing", "Kubernetes ops charm '%s' is missing", false)
	}
}

// checkMandatory reports each required charm absent from the
// deployment. Only the operations baseline may be satisfied by a SAAS
// offer instead of a local deployment.
func (l *Linter) checkMandatory(required []string, id, template string, saas bool) {
	charms := l.graph.Charms()
	for _, charm := range required {
		if charms.Contains(charm) {
			continue
		}
		if saas && l.satisfiedBySaaS(charm) {
			logger.Infof("mandatory charm %s is satisfied by a SAAS offer", charm)
			continue
		}
		l.collector.add(Violation{
			ID:       id,
			Severity: SeverityError,
			Tags:     []string{"charm", "missing"},
			Subject:  charm,
			Message:  fmt.Sprintf(template, charm),
		})
	}
}

// satisfiedBySaaS reports whether a mandatory charm is provided over a
// cross model relation: the rules must list it as consumable and a
// remote application matching it must be offered.
func (l *Linter) satisfiedBySaaS(charm string) bool {
	if !l.policy.SaaS().Contains(charm) {
		return false
	}
	for _, remote := range l.graph.RemoteApps.SortedValues() {
		if strings.HasPrefix(charm, remote) {
			return true
		}
	}
	return false
}
