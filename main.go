package main

import "github.com/fieldops/visitwatch/cmd"

func main() {
	cmd.Execute()
}
