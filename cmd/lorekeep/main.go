// cmd/lorekeep — operator CLI. Dispatches to subcommand handlers.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: lorekeep <submit|status|jobs|credits> [options]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "submit":
		runSubmit(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "jobs":
		runJobs(os.Args[2:])
	case "credits":
		runCredits(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Usage: lorekeep <submit|status|jobs|credits> [options]")
		os.Exit(1)
	}
}
