package main

import "github.com/8asic/mlpc2025-sound-event-detection/cmd"

func main() {
	cmd.Execute()
}
