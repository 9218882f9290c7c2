package main

import (
	"os"

	"github.com/solatis/alkatest/cmd/alkatest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
