// Package main is the entry point for the cyre CLI.
package main

import (
	"fmt"
	"os"

	"github.com/neuralline/cyre-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
