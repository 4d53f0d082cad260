package main

import "github.com/ppiankov/npipolicy/internal/cli"

// version is set by ldflags at build time.
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
