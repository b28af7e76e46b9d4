package main

import (
	"os"

	"github.com/pistonite/blueflame/cli"
)

func main() {
	os.Exit(cli.Execute())
}
