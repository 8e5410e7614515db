// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package deployment

import (
	"io"
	"os"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/utils/v4/keyvalues"
	"gopkg.in/yaml.v3"
)

// wireDoc is the union of the document shapes we accept: juju status
// output, exported bundles, and the legacy juju 1 "services" layout.
// Unknown fields are ignored.
type wireDoc struct {
	Model        wireModel               `yaml:"model"`
	Machines     map[string]*wireMachine `yaml:"machines"`
	Applications map[string]*wireApp     `yaml:"applications"`
	Services     map[string]*wireApp     `yaml:"services"`

	// Relations is a pointer so a present-but-empty list still marks
	// the document as a bundle.
	Relations *[][]string `yaml:"relations"`

	// Cross-model applications, under one of three keys depending on
	// which tool produced the document.
	SAAS                 map[string]interface{} `yaml:"saas"`
	ApplicationEndpoints map[string]interface{} `yaml:"application-endpoints"`
	RemoteApplications   map[string]interface{} `yaml:"remote-applications"`
}

type wireModel struct {
	Name       string `yaml:"name"`
	Controller string `yaml:"controller"`
}

type wireMachine struct {
	JujuStatus    *StatusInfo             `yaml:"juju-status"`
	MachineStatus *StatusInfo             `yaml:"machine-status"`
	Hardware      string                  `yaml:"hardware"`
	Containers    map[string]*wireMachine `yaml:"containers"`
}

type wireApp struct {
	Charm             string                 `yaml:"charm"`
	SubordinateTo     []string               `yaml:"subordinate-to"`
	ApplicationStatus *StatusInfo            `yaml:"application-status"`
	Units             map[string]*wireUnit   `yaml:"units"`
	Relations         map[string][]string    `yaml:"relations"`
	EndpointBindings  map[string]string      `yaml:"endpoint-bindings"`
	Options           map[string]interface{} `yaml:"options"`
	Bindings          map[string]string      `yaml:"bindings"`
	Offers            map[string]interface{} `yaml:"offers"`
}

type wireUnit struct {
	Machine        string               `yaml:"machine"`
	JujuStatus     *StatusInfo          `yaml:"juju-status"`
	WorkloadStatus *StatusInfo          `yaml:"workload-status"`
	Subordinates   map[string]*wireUnit `yaml:"subordinates"`
}

// Read decodes a status or bundle document into a Graph. Multi-document
// input, as juju export-bundle produces for offer overlays, selects the
// last document that is not an overlay; an overlay is any document with
// an application carrying an "offers" block.
func Read(r io.Reader) (*Graph, error) {
	decoder := yaml.NewDecoder(r)
	var docs []*wireDoc
	for {
		var doc wireDoc
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotate(err, "cannot parse deployment YAML")
		}
		docs = append(docs, &doc)
	}
	if len(docs) == 0 {
		return nil, errors.NotValidf("empty deployment document")
	}

	main := docs[0]
	for _, doc := range docs[1:] {
		if !hasOffers(doc) {
			main = doc
		}
	}
	return build(main), nil
}

// ReadFile reads a status or bundle document from a file.
func ReadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	graph, err := Read(f)
	if err != nil {
		return nil, errors.Annotatef(err, "reading deployment from %q", path)
	}
	return graph, nil
}

func hasOffers(doc *wireDoc) bool {
	apps := doc.Applications
	if apps == nil {
		apps = doc.Services
	}
	for _, app := range apps {
		if app != nil && app.Offers != nil {
			return true
		}
	}
	return false
}

func build(doc *wireDoc) *Graph {
	g := &Graph{
		ModelName:      doc.Model.Name,
		ControllerName: doc.Model.Controller,
		Applications:   make(map[string]*Application),
		Machines:       make(map[string]*Machine),
		RemoteApps:     set.NewStrings(),
	}

	apps := doc.Applications
	if apps == nil {
		apps = doc.Services
	}
	for name, wa := range apps {
		if wa == nil {
			wa = &wireApp{}
		}
		g.Applications[name] = buildApp(name, wa)
	}
	for id, wm := range doc.Machines {
		if wm == nil {
			wm = &wireMachine{}
		}
		g.Machines[id] = buildMachine(id, wm)
	}

	if doc.Relations != nil {
		g.HasRelations = true
		for _, pair := range *doc.Relations {
			if len(pair) != 2 {
				logger.Warningf("ignoring malformed bundle relation %v", pair)
				continue
			}
			g.Relations = append(g.Relations, Relation{Provider: pair[0], Requirer: pair[1]})
		}
	}

	// The first cross-model key present wins; export-bundle, jsfy and
	// libjuju each use a different one.
	for _, remotes := range []map[string]interface{}{
		doc.SAAS, doc.ApplicationEndpoints, doc.RemoteApplications,
	} {
		if remotes == nil {
			continue
		}
		for name := range remotes {
			g.RemoteApps.Add(name)
			// A graylog offer implies a remote elasticsearch behind it.
			if strings.HasPrefix(name, "graylog") {
				g.RemoteApps.Add("elasticsearch")
			}
		}
		break
	}

	g.normalize()
	return g
}

func buildApp(name string, w *wireApp) *Application {
	app := &Application{
		Name:          name,
		Charm:         w.Charm,
		SubordinateTo: w.SubordinateTo,
		Status:        w.ApplicationStatus,
		Options:       w.Options,
		Endpoints:     w.Relations,
		Bindings:      w.EndpointBindings,
		Units:         make(map[string]*Unit),
	}
	if app.Bindings == nil {
		app.Bindings = w.Bindings
	}
	for unitName, wu := range w.Units {
		if wu == nil {
			wu = &wireUnit{}
		}
		app.Units[unitName] = buildUnit(unitName, wu)
	}
	return app
}

func buildUnit(name string, w *wireUnit) *Unit {
	unit := &Unit{
		Name:           name,
		Machine:        w.Machine,
		JujuStatus:     w.JujuStatus,
		WorkloadStatus: w.WorkloadStatus,
		Subordinates:   make(map[string]*Unit),
	}
	for subName, ws := range w.Subordinates {
		if ws == nil {
			ws = &wireUnit{}
		}
		sub := buildUnit(subName, ws)
		// Subordinates run on their principal's machine.
		if sub.Machine == "" {
			sub.Machine = unit.Machine
		}
		unit.Subordinates[subName] = sub
	}
	return unit
}

func buildMachine(id string, w *wireMachine) *Machine {
	m := &Machine{
		ID:            id,
		JujuStatus:    w.JujuStatus,
		MachineStatus: w.MachineStatus,
		Containers:    make(map[string]*Machine),
	}
	if w.Hardware != "" {
		hardware, err := keyvalues.Parse(strings.Fields(w.Hardware), true)
		if err != nil {
			logger.Warningf("machine %s: cannot parse hardware %q: %v", id, w.Hardware, err)
		} else {
			m.Hardware = hardware
		}
	}
	for cid, wc := range w.Containers {
		if wc == nil {
			wc = &wireMachine{}
		}
		m.Containers[cid] = buildMachine(cid, wc)
	}
	return m
}
