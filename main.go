package main

import "pulsecheck/internal/cli"

func main() {
	cli.Execute()
}
