package main

import (
	"fmt"
	"os"
	"path"

	"go.uber.org/automaxprocs/maxprocs"

	"pirate-rpc/cmd/pirate/command"
)

// Set with -ldflags "-X main.Version=... -X main.GitHash=... -X main.BuildDate=...".
var (
	Version   = "dev"
	GitHash   = "unknown"
	BuildDate = "unknown"
)

func main() {
	// match GOMAXPROCS to the container CPU quota
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "maxprocs: %v\n", err)
	}

	binCleanName := path.Base(os.Args[0])
	versionMsg := fmt.Sprintf("%v version \"%s (%s)\" %s\n", binCleanName, Version, GitHash, BuildDate)

	if err := command.NewRootCommand(versionMsg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
