package main

import "github.com/isocanvas/isocanvas/cmd/isocanvas/cmd"

func main() {
	cmd.Execute()
}
