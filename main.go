package main

import "github.com/CosmoTheDev/slacknotify/cmd"

func main() {
	cmd.Execute()
}
