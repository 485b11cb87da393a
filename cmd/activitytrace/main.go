// activitytrace runs activity tracing scenarios described in YAML, and summarizes the events they
// produce.
package main

import (
	"fmt"
	"log"
	"os"

	cli "github.com/urfave/cli/v2"
)

const appName = "activitytrace"

// flag names
const (
	configFlagName  = "config"
	metricsFlagName = "metrics"
)

var appCommands = []*cli.Command{
	runCommand,
	decodeCommand,
	providerIDCommand,
}

func main() {
	// Run() should not return an error because of ExitErrHandler, but just in case ...
	if err := app().Run(os.Args); err != nil {
		log.New(os.Stderr, "", 0).Fatal(err)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:           appName,
		Usage:          "Run activity tracing scenarios and inspect the events they write",
		Commands:       appCommands,
		ExitErrHandler: errHandler,
	}
}

func errHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	s := c.App.Name
	if c.Command != nil && c.Command.Name != "" {
		s += " " + c.Command.Name
	}
	cli.HandleExitCoder(cli.Exit(fmt.Errorf("%s: %w", s, err), 1))
}
