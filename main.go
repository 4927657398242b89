package main

import "circlebridge/cmd"

func main() {
	cmd.Execute()
}
