// Command indexd is the CLI entry point: "index" walks a location and
// runs the identifier pipeline over it, "serve" runs the media gateway,
// and "version" reports build metadata.
package main

import (
	"os"

	"github.com/nonlocal/indexd/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
