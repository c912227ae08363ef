package main

import "github.com/fleetdata/trucksim/cmd"

func main() {
	cmd.Execute()
}
