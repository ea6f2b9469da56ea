package main

import "github.com/username/steuerfolio/src/cmd"

func main() {
	cmd.Execute()
}
