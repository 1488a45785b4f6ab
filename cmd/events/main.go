package main

import "github.com/2lu3/tetsumon-dayori/services/events/cli"

func main() {
	cli.Execute()
}
