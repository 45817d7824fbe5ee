package main

import "github.com/dwcli/dw/cmd"

func main() {
	cmd.Execute()
}
