package main

import "github.com/inovacc/trafficr/cmd"

func main() {
	cmd.Execute()
}
