package main

import "taskstream/cmd"

func main() {
	cmd.Run()
}
