package main

import "github.com/netcfgd/netcfgd/cmd"

func main() {
	cmd.Execute()
}
