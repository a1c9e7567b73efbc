package main

import "gruebox/cmd"

func main() {
	cmd.Execute()
}
