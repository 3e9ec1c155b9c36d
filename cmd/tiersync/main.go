package main

import "github.com/tiersync/tiersync/internal/cli"

func main() {
	cli.Execute()
}
