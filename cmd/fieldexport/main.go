// fieldexport validates plot layers and writes FieldExplorer plot files.
package main

import (
	"os"

	"github.com/hupe1980/fieldexport/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
