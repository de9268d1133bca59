package main

import (
	"os"

	"github.com/funvibe/quill/pkg/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
