package main

import "github.com/example/casualchat/cmd"

func main() {
	cmd.Execute()
}
