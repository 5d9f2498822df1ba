// Package main is the entry point for mediansim, which loads the example
// externals into a simulated host and drives them from a scenario file.
package main

import (
	"fmt"
	"os"

	_ "github.com/justyntemme/gomedian/examples/hellodsp"
	_ "github.com/justyntemme/gomedian/examples/jitscalebias"
	_ "github.com/justyntemme/gomedian/examples/simp"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
