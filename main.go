package main

import "github.com/timvw/pane-toggler/cmd"

func main() {
	cmd.Execute()
}
