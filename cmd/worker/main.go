package main

import "github.com/2lu3/tetsumon-dayori/services/worker/cli"

func main() {
	cli.Execute()
}
