package main

import "kongman/internal/cli"

func main() {
	cli.Execute()
}
