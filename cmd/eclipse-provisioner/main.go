package main

import "github.com/oshokin/eclipse-provisioner/cmd/eclipse-provisioner/cmd"

func main() {
	cmd.Execute()
}
