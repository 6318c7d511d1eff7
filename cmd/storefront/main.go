// Command storefront runs the storefront API server.
package main

import (
	"os"

	"github.com/giantswarm/storefront/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
