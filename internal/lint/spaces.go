// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package lint

import (
	"fmt"

	"github.com/juju/jujulint/internal/deployment"
	"github.com/juju/jujulint/internal/policy"
)

// checkSpaces verifies that both ends of every relation are bound to
// the same network space. Mismatches are warnings unless the rules
// enforce the endpoints involved; enforcement always wins over an
// ignore entry.
func (l *Linter) checkSpaces() {
	bound := false
	for _, name := range l.graph.AppNames() {
		if len(l.graph.Applications[name].Bindings) > 0 {
			bound = true
			break
		}
	}
	if !bound {
		l.collector.add(Violation{
			ID:       "space-data-gap",
			Severity: SeverityWarning,
			Tags:     []string{"space"},
			Message:  "Deployment carries relations but no endpoint bindings; skipping space binding checks",
		})
		return
	}

	appSpaces := make(map[string]map[string]string)
	for _, name := range l.graph.AppNames() {
		appSpaces[name] = l.appBindings(name)
	}
	for _, rel := range l.graph.Relations {
		l.checkRelationSpaces(rel, appSpaces)
	}
}

// appBindings returns the application's endpoint bindings with a
// default entry guaranteed, reporting applications that leave either
// out. Absent bindings resolve to the alpha space.
func (l *Linter) appBindings(name string) map[string]string {
	app := l.graph.Applications[name]
	if len(app.Bindings) == 0 {
		l.collector.add(Violation{
			ID:       "space-no-bindings",
			Severity: SeverityWarning,
			Tags:     []string{"space"},
			Subject:  name,
			Message:  fmt.Sprintf("Application %s is missing explicit bindings", name),
		})
		return map[string]string{"": "alpha"}
	}
	bindings := make(map[string]string, len(app.Bindings)+1)
	for endpoint, space := range app.Bindings {
		bindings[endpoint] = space
	}
	if _, ok := bindings[""]; !ok {
		l.collector.add(Violation{
			ID:       "space-no-default-binding",
			Severity: SeverityWarning,
			Tags:     []string{"space"},
			Subject:  name,
			Message:  fmt.Sprintf("Application %s does not define explicit default binding", name),
		})
		bindings[""] = "alpha"
	}
	return bindings
}

func (l *Linter) checkRelationSpaces(rel deployment.Relation, appSpaces map[string]map[string]string) {
	space1, ok1 := relationSpace(rel.Provider, appSpaces)
	space2, ok2 := relationSpace(rel.Requirer, appSpaces)
	if !ok1 || !ok2 {
		// One side lives in another model; nothing to compare.
		logger.Debugf("skipping space check for cross model relation %s <-> %s", rel.Provider, rel.Requirer)
		return
	}
	if space1 == space2 {
		return
	}

	first, firstSpace, second, secondSpace := rel.Provider, space1, rel.Requirer, space2
	if first > second {
		first, firstSpace, second, secondSpace = second, secondSpace, first, firstSpace
	}
	mismatch := fmt.Sprintf("SpaceMismatch(%s (space %s) != %s (space %s))",
		first, firstSpace, second, secondSpace)

	firstCharm := l.charmEndpoint(first)
	secondCharm := l.charmEndpoint(second)
	severity := SeverityWarning
	switch {
	case l.policy.Enforced(firstCharm, secondCharm):
		severity = SeverityError
	case l.policy.Ignored(firstCharm, secondCharm):
		logger.Debugf("ignoring space binding mismatch per rules: %s", mismatch)
		return
	}
	app, _, _ := policy.SplitEndpoint(first)
	l.collector.add(Violation{
		ID:       "space-binding-mismatch",
		Severity: severity,
		Tags:     []string{"space", "mismatch"},
		Subject:  app,
		Message:  fmt.Sprintf("Space binding mismatch: %s", mismatch),
	})
}

// relationSpace resolves one relation endpoint to its bound space.
// The second return is false for applications outside this model.
func relationSpace(endpoint string, appSpaces map[string]map[string]string) (string, bool) {
	app, ep, _ := policy.SplitEndpoint(endpoint)
	bindings, ok := appSpaces[app]
	if !ok {
		return "", false
	}
	if space, ok := bindings[ep]; ok {
		return space, true
	}
	return bindings[""], true
}

// charmEndpoint rewrites an "application:endpoint" string onto the
// application's charm, the form the space check rules are written in.
func (l *Linter) charmEndpoint(endpoint string) string {
	app, ep, _ := policy.SplitEndpoint(endpoint)
	charm, ok := l.graph.Charm(app)
	if !ok {
		charm = ""
	}
	return charm + ":" + ep
}
