package main

import (
	"github.com/mitchellh/cli"

	"github.com/minnahq/minna/internal/version"
)

type versionCommand struct {
	UI cli.Ui
}

func (c *versionCommand) Synopsis() string { return "Print the Minna version" }
func (c *versionCommand) Help() string     { return "Usage: minna version" }

func (c *versionCommand) Run(args []string) int {
	c.UI.Output(version.Full())
	return 0
}
