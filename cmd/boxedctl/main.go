// Package main is the entry point for boxedctl, the operator CLI.
package main

import "github.com/codeboxed/execd/internal/cli"

func main() {
	cli.Execute()
}
