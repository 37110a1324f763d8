// Package main provides the entry point for the artifactidx CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/artifactidx/cmd/artifactidx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
