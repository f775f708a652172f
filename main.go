package main

import "github.com/Davincible/gemini-code-open/cmd"

func main() {
	cmd.Execute()
}
