// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package deployment

import (
	"regexp"

	"github.com/juju/errors"
)

// charmNameExp reduces a charm reference to its bare name: an optional
// store schema ("cs:", "ch:", "local:"), an optional "~owner/"
// namespace, any series or architecture path elements, the name, and
// an optional "-<revision>" tail.
var charmNameExp = regexp.MustCompile(`^(?:\w+:)?(?:~[\w.-]+/)?(?:\w+/)*([a-z0-9-]+?)(?:-\d+)?$`)

// CharmName extracts the charm name from a charm URL or path. The
// function is idempotent: applying it to its own output returns the
// same name.
func CharmName(charm string) (string, error) {
	match := charmNameExp.FindStringSubmatch(charm)
	if match == nil {
		return "", errors.NotValidf("charm name %q", charm)
	}
	return match[1], nil
}
