package main

import "github.com/bryanchriswhite/FlexiView/cmd/flexiview/commands"

func main() {
	commands.Execute()
}
