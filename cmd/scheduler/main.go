package main

import "github.com/2lu3/tetsumon-dayori/services/scheduler/cli"

func main() {
	cli.Execute()
}
