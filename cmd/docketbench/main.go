package main

import "github.com/vietddude/docketbench/internal/cli"

func main() {
	cli.Execute()
}
