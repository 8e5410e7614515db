// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// jujulint audits Juju deployments against a site policy rules file.
package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v4"
)

func main() {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	os.Exit(cmd.Main(newLintCommand(), ctx, os.Args[1:]))
}
