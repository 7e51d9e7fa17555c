package main

import (
	"os"

	"github.com/argos-kg/argos/cmd/argos"
)

func main() {
	if err := argos.Execute(); err != nil {
		os.Exit(1)
	}
}
