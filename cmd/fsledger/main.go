// Package main provides the entry point for the fsledger CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/fsledger/cmd/fsledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
