package main

import (
	"fmt"
	"os"

	"github.com/kilianp07/bessopt/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		code, msg := cmd.Describe(err)
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(code)
	}
}
