package main

import "github.com/oshokin/alert-receiver/cmd/alert-console/cmd"

func main() {
	cmd.Execute()
}
