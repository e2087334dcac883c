// Command mechmon is the model monitoring CLI.
package main

import (
	"os"

	"github.com/kilupskalvis/mechmon/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
