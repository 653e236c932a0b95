package main

import "github.com/aegis-gate/aegis/cmd/aegis/cmd"

func main() {
	cmd.Execute()
}
