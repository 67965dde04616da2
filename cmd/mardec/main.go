package main

import (
	"io"
	"os"
)

const productName = "mardec"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches subcommands and otherwise decodes. Exit codes are 0 on
// success, 1 on runtime failure and 2 on usage errors.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "version":
			return runVersion(args[1:], stdout, stderr)
		case "config":
			return runConfig(args[1:], stdout, stderr)
		case "self-update":
			return runSelfUpdate(args[1:], stdout, stderr)
		}
	}
	return runDecode(args, stdout, stderr)
}
