// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package collect gathers deployment data from a local juju client,
// one status document per model.
package collect

import (
	"bytes"
	"context"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/juju/jujulint/internal/deployment"
)

var logger = loggo.GetLogger("jujulint.collect")

// RunFunc executes a command and returns its stdout. Implementations
// must honour cancellation of the context.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Config configures a Collector.
type Config struct {
	// Binary is the juju client to drive. Defaults to "juju" on PATH.
	Binary string

	// Timeout bounds each juju invocation. Defaults to 30 seconds.
	Timeout time.Duration

	// Clock enforces the timeout. Defaults to the wall clock.
	Clock clock.Clock

	// Run executes commands, replaceable for tests. Defaults to
	// os/exec.
	Run RunFunc
}

// Collector shells out to the juju CLI for controller, model and
// status information.
type Collector struct {
	config Config
}

// New returns a Collector with the configured defaults filled in.
func New(config Config) *Collector {
	if config.Binary == "" {
		config.Binary = "juju"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	if config.Run == nil {
		config.Run = execCommand
	}
	return &Collector{config: config}
}

// Deployment is one collected model.
type Deployment struct {
	Controller string
	Model      string
	Graph      *deployment.Graph
}

// Controllers lists the controllers the local juju client knows,
// sorted by name.
func (c *Collector) Controllers(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "controllers", "--format", "yaml")
	if err != nil {
		return nil, errors.Annotate(err, "listing controllers")
	}
	var doc struct {
		Controllers map[string]interface{} `yaml:"controllers"`
	}
	if err := yaml.Unmarshal(out, &doc); err != nil {
		return nil, errors.Annotate(err, "cannot parse juju controllers output")
	}
	names := make([]string, 0, len(doc.Controllers))
	for name := range doc.Controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Models lists the models on a controller.
func (c *Collector) Models(ctx context.Context, controller string) ([]string, error) {
	out, err := c.run(ctx, "models", "-c", controller, "--format", "yaml")
	if err != nil {
		return nil, errors.Annotatef(err, "listing models on %q", controller)
	}
	var doc struct {
		Models []struct {
			Name      string `yaml:"name"`
			ShortName string `yaml:"short-name"`
		} `yaml:"models"`
	}
	if err := yaml.Unmarshal(out, &doc); err != nil {
		return nil, errors.Annotate(err, "cannot parse juju models output")
	}
	var names []string
	for _, m := range doc.Models {
		name := m.ShortName
		if name == "" {
			name = m.Name
		}
		names = append(names, name)
	}
	return names, nil
}

// Status collects one model's status document.
func (c *Collector) Status(ctx context.Context, controller, model string) (*deployment.Graph, error) {
	out, err := c.run(ctx, "status", "-m", controller+":"+model, "--format", "yaml")
	if err != nil {
		return nil, errors.Annotatef(err, "collecting status of %s:%s", controller, model)
	}
	graph, err := deployment.Read(bytes.NewReader(out))
	return graph, errors.Trace(err)
}

// Bundle exports one model as a bundle document.
func (c *Collector) Bundle(ctx context.Context, controller, model string) (*deployment.Graph, error) {
	out, err := c.run(ctx, "export-bundle", "-m", controller+":"+model)
	if err != nil {
		return nil, errors.Annotatef(err, "exporting bundle of %s:%s", controller, model)
	}
	graph, err := deployment.Read(bytes.NewReader(out))
	return graph, errors.Trace(err)
}

// All sweeps every model on every known controller. A model or
// controller that fails to collect is logged and skipped rather than
// failing the sweep.
func (c *Collector) All(ctx context.Context) ([]Deployment, error) {
	controllers, err := c.Controllers(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var collected []Deployment
	for _, controller := range controllers {
		models, err := c.Models(ctx, controller)
		if err != nil {
			logger.Errorf("cannot list models on %s: %v", controller, err)
			continue
		}
		for _, model := range models {
			graph, err := c.Status(ctx, controller, model)
			if err != nil {
				logger.Errorf("cannot collect %s:%s: %v", controller, model, err)
				continue
			}
			collected = append(collected, Deployment{
				Controller: controller,
				Model:      model,
				Graph:      graph,
			})
		}
	}
	return collected, nil
}

// run executes one juju invocation under the configured timeout.
func (c *Collector) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := c.config.Clock.NewTimer(c.config.Timeout)
	defer timer.Stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-timer.Chan():
			logger.Warningf("juju %s exceeded %v, cancelling",
				strings.Join(args, " "), c.config.Timeout)
			cancel()
		case <-done:
		}
	}()
	logger.Debugf("running juju %s", strings.Join(args, " "))
	out, err := c.config.Run(ctx, c.config.Binary, args...)
	return out, errors.Trace(err)
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Annotate(err, msg)
		}
		return nil, errors.Trace(err)
	}
	return stdout.Bytes(), nil
}
