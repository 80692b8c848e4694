package main

import "github.com/oshokin/alert-receiver/cmd/alert-watch/cmd"

func main() {
	cmd.Execute()
}
