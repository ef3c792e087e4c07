// Command sdgpull fetches SDG indicator metadata and series observations from
// the UN statistics API, flattens them into tables, and delivers the tables to
// the configured sinks.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
