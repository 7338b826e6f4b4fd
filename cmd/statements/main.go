// Command statements runs extraction jobs against chat completion endpoints.
package main

import (
	"fmt"
	"os"

	"github.com/DotIN13/statements/cmd/statements/commands"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
