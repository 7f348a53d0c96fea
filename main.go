package main

import "audiowave/cmd"

func main() {
	cmd.Execute()
}
