package main

import "github.com/oshokin/alert-receiver/cmd/alert-receiver/cmd"

func main() {
	cmd.Execute()
}
