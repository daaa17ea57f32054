// Package main provides the entry point for the fimcheck file integrity checker.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
