package main

import "github.com/minhbau/ember/cmd"

func main() {
	cmd.Execute()
}
