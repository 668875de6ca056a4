package main

import "ncats/chp/cmd"

func main() {
	cmd.Execute()
}
