package main

import "github.com/shaharia-lab/knockknock/cmd"

func main() {
	cmd.Execute()
}
