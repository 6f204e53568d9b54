// Command healthstore drives the health data store from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/healthstore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if cli.GetExitCode(err) == cli.ExitCommandError {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
