package main

import "github.com/txrecon/txrecon/cmd"

func main() {
	cmd.Execute()
}
