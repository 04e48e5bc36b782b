// Package main is the entry point for the project-pilot CLI
package main

import (
	"os"

	"github.com/Jurkyy/project-pilot/internal/cli"
)

// Set at build time via ldflags
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version)
	cli.SetBuildInfo(commit, buildTime)
	os.Exit(cli.Execute(os.Args[1:]))
}
