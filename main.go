package main

import "shakeout/cmd"

func main() {
	cmd.Execute()
}
