package main

import "github.com/smukkama/gridguard/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
