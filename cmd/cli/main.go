// Package main is the entry point for the vidctl CLI.
// vidctl is the terminal client for the imgtovideo API.
package main

import (
	"os"

	"github.com/ShivamThakkar1/imgtovideo/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
