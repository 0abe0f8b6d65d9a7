// ABOUTME: Entry point for the syncplay player
// ABOUTME: Delegates to the cobra command tree
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
