// cmd/n2go/main.go
package main

import (
	"os"

	"github.com/n2go/n2go/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	err := root.Execute()
	os.Exit(cli.GetExitCode(err))
}
