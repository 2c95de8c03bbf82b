package main

import (
	"fmt"
	"os"

	"github.com/Kade-Heyborne/port-manager/internal/cli"
)

func main() {
	err := cli.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.ExitCode(err))
}
