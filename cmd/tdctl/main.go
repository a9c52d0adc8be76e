package main

import "github.com/mcoot/tdlobby/internal/cli"

func main() {
	cli.Execute()
}
