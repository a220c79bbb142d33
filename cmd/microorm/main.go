// Command microorm inspects tables and prints the statements the mapper
// generates for them.
package main

import (
	"context"

	"github.com/scott-cotton/cli"
)

func main() {
	cli.MainContext(context.Background(), MainCommand())
}
