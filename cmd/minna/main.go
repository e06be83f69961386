// Command minna is the thin admin front door: "minna serve" launches
// the minnad daemon binary and "minna version" prints build
// information. Everything else — the TUI, the MCP injector, the OAuth
// browser flow — lives in the external CLI this repo doesn't build.
// Grounded on internal/cmd/main.go's cli.CLI/BasicUi wiring, written
// fresh since that file's own command table and base package aren't
// part of this retrieval.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/minnahq/minna/internal/version"
)

func main() {
	args := os.Args
	cliName := "minna"
	if len(args) > 0 {
		cliName = args[0]
	}

	if len(args) == 2 && (args[1] == "-version" || args[1] == "-v" || args[1] == "--version") {
		args = []string{cliName, "version"}
	}
	if len(args) == 1 {
		args = append(args, "serve")
	}

	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}
	log := hclog.New(&hclog.LoggerOptions{Name: cliName})

	c := &cli.CLI{
		Name:    cliName,
		Args:    args[1:],
		Version: version.Version,
		Commands: map[string]cli.CommandFactory{
			"serve": func() (cli.Command, error) {
				return &serveCommand{UI: ui, log: log}, nil
			},
			"version": func() (cli.Command, error) {
				return &versionCommand{UI: ui}, nil
			},
		},
	}

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
