package main

import "github.com/oshokin/alert-receiver/cmd/alert-sender/cmd"

func main() {
	cmd.Execute()
}
