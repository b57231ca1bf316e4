package main

import "github.com/agentic-research/termtree/cmd"

func main() {
	cmd.Execute()
}
