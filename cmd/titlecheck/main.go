// Package main wires the titlecheck CLI.
package main

import (
	"os"

	"github.com/JakeFAU/titlecheck/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
