// sigilctl inspects avatar fingerprints and manages the avatar database
// from the command line.
package main

import (
	"os"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
