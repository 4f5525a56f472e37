package main

import "devinflow/internal/cli"

func main() {
	cli.Execute()
}
