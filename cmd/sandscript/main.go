package main

import (
	"github.com/nfrund/sandscript/cmd/sandscript/cmd"
)

func main() {
	cmd.Execute()
}
