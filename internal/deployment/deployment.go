// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package deployment builds a normalized graph of a Juju model from
// status or bundle data. The graph is read-only once built; checkers
// query it through accessors that return results in a deterministic
// order.
package deployment

import (
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/loggo/v2"
	"github.com/juju/names/v5"
	"github.com/juju/naturalsort"
)

var logger = loggo.GetLogger("jujulint.deployment")

// StatusInfo is a single status block as juju reports it, for a
// machine, unit or application.
type StatusInfo struct {
	Current string `yaml:"current"`
	Message string `yaml:"message"`
	Since   string `yaml:"since"`
}

// Unit is one deployed unit of an application. Subordinate units
// appear nested under the principal unit that hosts them.
type Unit struct {
	Name           string
	Machine        string
	JujuStatus     *StatusInfo
	WorkloadStatus *StatusInfo
	Subordinates   map[string]*Unit
}

// Application is one application entry from a status or bundle
// document. Bindings holds endpoint-to-space assignments from either
// source; Endpoints holds the established relations by endpoint name,
// which only status documents carry.
type Application struct {
	Name          string
	Charm         string
	CharmName     string
	SubordinateTo []string
	Status        *StatusInfo
	Options       map[string]interface{}
	Bindings      map[string]string
	Endpoints     map[string][]string
	Units         map[string]*Unit
}

// UnitNames returns the application's unit names in natural order.
func (a *Application) UnitNames() []string {
	names := make([]string, 0, len(a.Units))
	for name := range a.Units {
		names = append(names, name)
	}
	naturalsort.Sort(names)
	return names
}

// Machine is a host machine or a container on one. Hardware is the
// parsed provider hardware line; it is nil when the document carries
// none, as bundles do.
type Machine struct {
	ID            string
	JujuStatus    *StatusInfo
	MachineStatus *StatusInfo
	Hardware      map[string]string
	Containers    map[string]*Machine
}

// IsContainer reports whether the machine id denotes a container.
func (m *Machine) IsContainer() bool {
	return strings.Contains(m.ID, "/")
}

// IsMetal reports whether the machine is bare metal. Containers are
// never metal; a provider tag of "virtual" marks a VM. Machines with
// no hardware data are assumed to be metal.
func (m *Machine) IsMetal() bool {
	if m.IsContainer() {
		return false
	}
	for _, tag := range strings.Split(m.Hardware["tags"], ",") {
		if tag == "virtual" {
			return false
		}
	}
	return true
}

// AvailabilityZone returns the machine's AZ from the hardware data.
func (m *Machine) AvailabilityZone() (string, bool) {
	az, ok := m.Hardware["availability-zone"]
	return az, ok
}

// ContainerIDs returns the machine's container ids in natural order.
func (m *Machine) ContainerIDs() []string {
	ids := make([]string, 0, len(m.Containers))
	for id := range m.Containers {
		ids = append(ids, id)
	}
	naturalsort.Sort(ids)
	return ids
}

// Relation is one relation endpoint pair from a bundle document.
type Relation struct {
	Provider string
	Requirer string
}

// Graph is the normalized deployment. HasRelations distinguishes a
// bundle (which carries its relation list) from a status document.
type Graph struct {
	ModelName      string
	ControllerName string

	Applications map[string]*Application
	Machines     map[string]*Machine
	RemoteApps   set.Strings
	Relations    []Relation
	HasRelations bool

	appCharm  map[string]string
	charmApps map[string]set.Strings
	unmapped  []string
	subsOn    map[string]set.Strings
	appsOn    map[string]set.Strings
	subCounts map[string]map[string]int
}

// normalize derives the query indexes from the raw maps: the
// application-to-charm mapping and the per-machine placement sets that
// the subordinate checks walk. Applications whose charm field cannot
// be reduced to a charm name are recorded as unmapped rather than
// dropped.
func (g *Graph) normalize() {
	g.appCharm = make(map[string]string)
	g.charmApps = make(map[string]set.Strings)
	g.subsOn = make(map[string]set.Strings)
	g.appsOn = make(map[string]set.Strings)
	g.subCounts = make(map[string]map[string]int)

	for _, name := range g.AppNames() {
		app := g.Applications[name]
		charm, err := CharmName(app.Charm)
		if err != nil {
			logger.Debugf("cannot map application %q: %v", name, err)
			g.unmapped = append(g.unmapped, name)
			continue
		}
		app.CharmName = charm
		g.appCharm[name] = charm
		if g.charmApps[charm] == nil {
			g.charmApps[charm] = set.NewStrings()
		}
		g.charmApps[charm].Add(name)
	}

	for _, name := range g.AppNames() {
		app := g.Applications[name]
		for _, unitName := range app.UnitNames() {
			unit := app.Units[unitName]
			if unit.Machine == "" {
				logger.Debugf("unit %q has no machine; skipping placement", unitName)
				continue
			}
			machine := unit.Machine
			if g.subsOn[machine] == nil {
				g.subsOn[machine] = set.NewStrings()
			}
			if g.appsOn[machine] == nil {
				g.appsOn[machine] = set.NewStrings()
			}
			g.appsOn[machine].Add(name)
			for subName := range unit.Subordinates {
				subApp, err := names.UnitApplication(subName)
				if err != nil {
					logger.Warningf("invalid subordinate unit name %q: %v", subName, err)
					continue
				}
				g.subsOn[machine].Add(subApp)
				if g.subCounts[machine] == nil {
					g.subCounts[machine] = make(map[string]int)
				}
				g.subCounts[machine][subApp]++
			}
		}
	}
}

// AppNames returns all application names in sorted order.
func (g *Graph) AppNames() []string {
	names := make([]string, 0, len(g.Applications))
	for name := range g.Applications {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// App returns the named application.
func (g *Graph) App(name string) (*Application, bool) {
	app, ok := g.Applications[name]
	return app, ok
}

// HasApp reports whether the named application is deployed.
func (g *Graph) HasApp(name string) bool {
	_, ok := g.Applications[name]
	return ok
}

// Charm returns the normalized charm name for an application.
func (g *Graph) Charm(app string) (string, bool) {
	charm, ok := g.appCharm[app]
	return charm, ok
}

// Charms returns the set of normalized charm names in the deployment.
func (g *Graph) Charms() set.Strings {
	charms := set.NewStrings()
	for _, charm := range g.appCharm {
		charms.Add(charm)
	}
	return charms
}

// CharmApps returns the applications deployed from the given charm.
// Charms like nrpe are commonly deployed under several names.
func (g *Graph) CharmApps(charm string) set.Strings {
	apps := g.charmApps[charm]
	if apps == nil {
		return set.NewStrings()
	}
	return apps
}

// UnmappedApps returns applications whose charm could not be
// determined, in sorted order.
func (g *Graph) UnmappedApps() []string {
	return g.unmapped
}

// MachineIDs returns the host machine ids in natural order.
func (g *Graph) MachineIDs() []string {
	ids := make([]string, 0, len(g.Machines))
	for id := range g.Machines {
		ids = append(ids, id)
	}
	naturalsort.Sort(ids)
	return ids
}

// Machine returns the machine or container with the given id.
func (g *Graph) Machine(id string) (*Machine, bool) {
	if m, ok := g.Machines[id]; ok {
		return m, true
	}
	host := strings.SplitN(id, "/", 2)[0]
	if m, ok := g.Machines[host]; ok {
		if c, ok := m.Containers[id]; ok {
			return c, true
		}
	}
	return nil, false
}

// PlacementIDs returns the ids of machines and containers that host at
// least one principal unit, in natural order. These are the placements
// the subordinate checks visit.
func (g *Graph) PlacementIDs() []string {
	ids := make([]string, 0, len(g.appsOn))
	for id := range g.appsOn {
		ids = append(ids, id)
	}
	naturalsort.Sort(ids)
	return ids
}

// SubsOn returns the subordinate application names present on a
// machine or container.
func (g *Graph) SubsOn(machine string) set.Strings {
	subs := g.subsOn[machine]
	if subs == nil {
		return set.NewStrings()
	}
	return subs
}

// AppsOn returns the principal application names with a unit on a
// machine or container.
func (g *Graph) AppsOn(machine string) set.Strings {
	apps := g.appsOn[machine]
	if apps == nil {
		return set.NewStrings()
	}
	return apps
}

// SubCount returns how many units of the subordinate application sit
// on the given machine or container.
func (g *Graph) SubCount(machine, subApp string) int {
	return g.subCounts[machine][subApp]
}
