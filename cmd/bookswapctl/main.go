// Command bookswapctl drives the book exchange core against a SQL database.
// It stands in for the API layer: --user carries the already authenticated
// caller and every result is printed as JSON.
package main

import (
	"fmt"
	"os"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		if writeErr := writeJSON(os.Stderr, describeError(err)); writeErr != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
