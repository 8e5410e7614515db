// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/juju/cmd/v4"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/jujulint/internal/collect"
	"github.com/juju/jujulint/internal/deployment"
	"github.com/juju/jujulint/internal/lint"
	"github.com/juju/jujulint/internal/policy"
	"github.com/juju/jujulint/internal/rules"
)

const lintDoc = `
jujulint audits one or more Juju models against the site policy held in
a lint rules file.

With a positional file argument the deployment is read from that file,
which may be juju status output or an exported bundle in YAML format.
Without one, every model on every controller known to the local juju
client is collected and audited; use --controller and --model to audit
a single live model instead.

Violations are written to stdout in the chosen format. The exit code is
non-zero when any error-severity violation was found.

Examples:

    jujulint -c canonical-rules.yaml bundle.yaml
    jujulint --controller prod --model openstack
    jujulint --format json -o report.json status.yaml
`

func newLintCommand() cmd.Command {
	return &lintCommand{}
}

type lintCommand struct {
	cmd.CommandBase
	out cmd.Output
	log cmd.Log

	rulesFile  string
	cloudType  string
	overrides  string
	controller string
	model      string
	name       string
	file       string

	// collector is replaceable for tests.
	collector *collect.Collector
}

func (c *lintCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "jujulint",
		Args:    "[<deployment file>]",
		Purpose: "Audit Juju models against site policy.",
		Doc:     strings.TrimSpace(lintDoc),
	}
}

func (c *lintCommand) SetFlags(f *gnuflag.FlagSet) {
	c.out.AddFlags(f, "text", map[string]cmd.Formatter{
		"text": formatReportText,
		"json": cmd.FormatJson,
		"yaml": cmd.FormatYaml,
	})
	c.log.AddFlags(f)
	f.StringVar(&c.rulesFile, "c", "lint-rules.yaml", "file to read lint rules from")
	f.StringVar(&c.rulesFile, "config", "lint-rules.yaml", "file to read lint rules from")
	f.StringVar(&c.cloudType, "t", "", "force the cloud type instead of detecting it from the charms")
	f.StringVar(&c.cloudType, "cloud-type", "", "force the cloud type instead of detecting it from the charms")
	f.StringVar(&c.overrides, "override-subordinate", "", "override subordinate rules, e.g. canonical-livepatch:all")
	f.StringVar(&c.controller, "controller", "", "limit live collection to one controller")
	f.StringVar(&c.model, "model", "", "limit live collection to one model")
	f.StringVar(&c.name, "name", "", "label for the lint report")
}

func (c *lintCommand) Init(args []string) error {
	if len(args) > 0 {
		c.file = args[0]
		args = args[1:]
	}
	if err := cmd.CheckEmpty(args); err != nil {
		return errors.Trace(err)
	}
	switch c.cloudType {
	case "", string(policy.CloudTypeOpenStack), string(policy.CloudTypeKubernetes):
	default:
		return errors.NotValidf("cloud type %q", c.cloudType)
	}
	if (c.controller == "") != (c.model == "") {
		return errors.New("--controller and --model must be used together")
	}
	if c.file != "" && c.controller != "" {
		return errors.New("cannot audit both a deployment file and a live model")
	}
	return nil
}

func (c *lintCommand) Run(ctx *cmd.Context) error {
	if err := c.log.Start(ctx); err != nil {
		return errors.Trace(err)
	}
	doc, err := c.readPolicy(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	deployments, err := c.gather(ctx)
	if err != nil {
		return errors.Trace(err)
	}

	var reports []*lint.Report
	failed := false
	for _, d := range deployments {
		linter, err := lint.New(lint.Config{
			Policy:     doc,
			CloudType:  policy.CloudType(c.cloudType),
			Name:       c.name,
			Controller: d.Controller,
			Model:      d.Model,
			Rules:      c.rulesFile,
		})
		if err != nil {
			return errors.Trace(err)
		}
		report := linter.Run(d.Graph)
		if report.Errors() > 0 {
			failed = true
		}
		reports = append(reports, report)
	}

	var value interface{} = reports
	if len(reports) == 1 {
		value = reports[0]
	}
	if err := c.out.Write(ctx, value); err != nil {
		return errors.Trace(err)
	}
	if failed {
		return cmd.ErrSilent
	}
	return nil
}

// readPolicy loads and parses the rules file, with any subordinate
// overrides applied first.
func (c *lintCommand) readPolicy(ctx *cmd.Context) (*policy.Document, error) {
	raw, err := rules.ReadFile(ctx.AbsPath(c.rulesFile))
	if err != nil {
		return nil, errors.Annotatef(err, "reading rules from %q", c.rulesFile)
	}
	if c.overrides != "" {
		if err := rules.ApplyOverrides(raw, c.overrides); err != nil {
			return nil, errors.Trace(err)
		}
	}
	doc, err := policy.Parse(raw)
	return doc, errors.Trace(err)
}

// gather returns the deployments to lint: the manual file when one was
// given, otherwise live data from the local juju client.
func (c *lintCommand) gather(ctx *cmd.Context) ([]collect.Deployment, error) {
	if c.file != "" {
		graph, err := deployment.ReadFile(ctx.AbsPath(c.file))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return []collect.Deployment{{Graph: graph}}, nil
	}

	collector := c.collector
	if collector == nil {
		collector = collect.New(collect.Config{})
	}
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if c.controller != "" {
		graph, err := collector.Status(runCtx, c.controller, c.model)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return []collect.Deployment{{
			Controller: c.controller,
			Model:      c.model,
			Graph:      graph,
		}}, nil
	}
	deployments, err := collector.All(runCtx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(deployments) == 0 {
		return nil, errors.New("no models could be collected")
	}
	return deployments, nil
}

// formatReportText writes violations one per line. Multiple reports are
// separated by a controller:model header; reports with no violations
// print nothing.
func formatReportText(writer io.Writer, value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case *lint.Report:
		return writeReportText(writer, v, false)
	case []*lint.Report:
		for _, report := range v {
			if err := writeReportText(writer, report, true); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}
	return errors.Errorf("cannot format %T as text", value)
}

func writeReportText(writer io.Writer, report *lint.Report, header bool) error {
	if len(report.Violations) == 0 {
		return nil
	}
	if header {
		if _, err := fmt.Fprintf(writer, "%s:%s:\n", report.Controller, report.Model); err != nil {
			return errors.Trace(err)
		}
	}
	for _, violation := range report.Violations {
		if _, err := fmt.Fprintln(writer, violation.String()); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
