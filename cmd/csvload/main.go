// Command csvload bulk-loads person CSV files into a SQLite database.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/csvload/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
