// Command depgraph manages the task dependency graph: create and query
// blocking relationships between tasks with cycle prevention, import and
// export edges, and serve a live dashboard feed.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
