// Command vmailctl administers the mail directory from the shell.
package main

import (
	"os"

	"vmail/backend/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
