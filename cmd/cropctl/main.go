// Package main provides cropctl, a command line client for the offline crop advisor.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(nil, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
