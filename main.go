package main

import "github.com/KaramelBytes/seascope/cmd"

func main() {
	cmd.Execute()
}
