package main

import "cc_session_hub/internal/commands"

func main() {
	commands.Execute()
}
