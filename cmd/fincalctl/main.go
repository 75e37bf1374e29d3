package main

import (
	"os"

	"fincal/internal/cli"
)

func main() {
	ctx, stop := cli.SignalContext()
	err := cli.Execute(ctx, cli.DefaultOpener, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
