package main

import "github.com/larose/tempblock/internal/cli"

func main() {
	cli.Execute()
}
