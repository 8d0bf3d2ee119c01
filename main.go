package main

import "github.com/dashborion/dashborion/cmd"

func main() {
	cmd.Execute()
}
