package main

import "github.com/edgeops/opsctl/pkg/cli"

func main() {
	cli.Execute()
}
