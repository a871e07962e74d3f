package main

import "github.com/spec-kit/dispatch-service/cmd/dispatchctl/commands"

func main() {
	commands.Execute()
}
