package main

import "github.com/forPelevin/reframe/internal/cli"

func main() {
	cli.Main()
}
