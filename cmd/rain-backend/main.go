// main.go — точка входа Rain backend.
package main

import (
	"os"

	"github.com/SwartzMss/Rain/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
