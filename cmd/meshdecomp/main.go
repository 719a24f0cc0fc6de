// Command meshdecomp writes a manual cell decomposition for OpenFOAM's
// decomposePar.
package main

import (
	"os"

	"github.com/turtacn/meshdecomp/internal/interfaces/cli"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(errors.ExitCode(errors.GetCode(err)))
	}
}
