package main

import "bookdex/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
