package main

import "github.com/GGmuzem/formula-engine/internal/cli"

func main() {
	cli.Execute()
}
