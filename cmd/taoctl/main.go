// Command taoctl runs the dividend resolver and the sentiment pipeline once
// from the command line, against the same configuration as the server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
