package main

import (
	"os"

	"github.com/The-Batman-Code/literate-happiness/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
