package main

import "github.com/taskherald/herald/internal/cli"

func main() {
	cli.Execute()
}
