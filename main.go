package main

import (
	"os"

	"github.com/JamesWheadon/Carbon-Intensity/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
