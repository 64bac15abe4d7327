package main

import (
	"os"

	"github.com/lowRISC/container-hotplug/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
