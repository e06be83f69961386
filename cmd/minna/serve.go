package main

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// serveCommand execs the minnad daemon binary, preferring a copy next
// to this one (the normal install layout) and falling back to PATH.
type serveCommand struct {
	UI  cli.Ui
	log hclog.Logger
}

func (c *serveCommand) Synopsis() string {
	return "Run the Minna daemon"
}

func (c *serveCommand) Help() string {
	return "Usage: minna serve\n\n  Starts minnad and blocks until it exits."
}

func (c *serveCommand) Run(args []string) int {
	path, err := daemonBinaryPath()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		c.UI.Error("running minnad: " + err.Error())
		return 1
	}
	return 0
}

// daemonBinaryPath looks for minnad next to the running executable
// first (the shipped install layout), then falls back to PATH.
func daemonBinaryPath() (string, error) {
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), "minnad")
		if _, statErr := os.Stat(sibling); statErr == nil {
			return sibling, nil
		}
	}
	return exec.LookPath("minnad")
}
