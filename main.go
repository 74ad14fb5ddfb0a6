package main

import (
	"fmt"
	"os"

	"github.com/ekaya-inc/ekaya-health/cmd"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := cmd.Execute(Version); err != nil {
		fmt.Fprintf(os.Stderr, "ekaya-health: %v\n", err)
		os.Exit(1)
	}
}
