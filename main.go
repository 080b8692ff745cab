package main

import (
	"github.com/corvid/threadview/frontend/cli/cmd"
)

func main() {
	cmd.Execute()
}
