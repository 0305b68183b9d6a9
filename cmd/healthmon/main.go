package main

import (
	"os"

	"healthmon/internals/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
