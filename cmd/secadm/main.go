// Package main provides secadm, the command-line client for the secadmd
// policy daemon.
package main

import (
	"os"

	"github.com/hardenedlabs/secadm/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Stdout, os.Stderr, os.Args))
}
