// Command syntra runs two-perspective reasoning passes from the terminal.
package main

import (
	"os"

	"github.com/infektyd/syntra/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
