// Package main is the single-binary entrypoint for nonagon.
package main

import "github.com/nonagon/core/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
