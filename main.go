package main

import "github.com/jayapriya2010/aquaponics-server/cmd"

func main() {
	cmd.Execute()
}
