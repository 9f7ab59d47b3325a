package main

import (
	"fmt"
	"os"

	"github.com/nspcc-dev/student-roster/internal/cli"
)

func main() {
	err := cli.BuildCLI().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
