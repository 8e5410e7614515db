// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package policy

import (
	"strings"

	"github.com/juju/errors"
)

// ScopeKind enumerates the recognised subordinate placement scopes.
type ScopeKind string

const (
	// ScopeAll places the subordinate beside every principal unit.
	ScopeAll ScopeKind = "all"
	// ScopeAllExcept is ScopeAll, skipping hosts of the named charm.
	ScopeAllExcept ScopeKind = "all except"
	// ScopeHostOnly places the subordinate on machines, never in
	// containers.
	ScopeHostOnly ScopeKind = "host only"
	// ScopeContainerAware requires one presence per host context,
	// matching suffixed variants of the subordinate name.
	ScopeContainerAware ScopeKind = "container aware"
	// ScopeOn places the subordinate only beside the named charm.
	ScopeOn ScopeKind = "on"
	// ScopeMetalOnly places the subordinate on bare metal machines.
	ScopeMetalOnly ScopeKind = "metal only"
	// ScopeAllOrNothing allows the subordinate to be absent entirely,
	// but once present anywhere it is required everywhere.
	ScopeAllOrNothing ScopeKind = "all or nothing"
)

// Scope is a parsed placement scope: a kind plus, for "on" and
// "all except", the charm the kind applies to.
type Scope struct {
	Kind  ScopeKind
	Charm string
}

// ParseScope parses a "where" value from a subordinate rule. Anything
// outside the closed grammar is a NotValid error, rejected before any
// checking starts.
func ParseScope(where string) (Scope, error) {
	switch {
	case where == string(ScopeAll):
		return Scope{Kind: ScopeAll}, nil
	case where == string(ScopeHostOnly):
		return Scope{Kind: ScopeHostOnly}, nil
	case where == string(ScopeContainerAware):
		return Scope{Kind: ScopeContainerAware}, nil
	case where == string(ScopeMetalOnly):
		return Scope{Kind: ScopeMetalOnly}, nil
	case where == string(ScopeAllOrNothing):
		return Scope{Kind: ScopeAllOrNothing}, nil
	case strings.HasPrefix(where, "all except "):
		charm := strings.TrimPrefix(where, "all except ")
		if charm == "" {
			break
		}
		return Scope{Kind: ScopeAllExcept, Charm: charm}, nil
	case strings.HasPrefix(where, "on "):
		charm := strings.TrimPrefix(where, "on ")
		if charm == "" {
			break
		}
		return Scope{Kind: ScopeOn, Charm: charm}, nil
	}
	return Scope{}, errors.NotValidf("subordinate placement %q", where)
}

// String reconstructs the rule-file form of the scope.
func (s Scope) String() string {
	switch s.Kind {
	case ScopeAllExcept, ScopeOn:
		return string(s.Kind) + " " + s.Charm
	}
	return string(s.Kind)
}
