package main

import "hill/internal/cli"

func main() {
	cli.Execute()
}
