// chgo is a fast client front-end for a version-control command server: it
// keeps a warm server process running behind a Unix-domain socket and
// forwards invocations to it, avoiding interpreter start-up cost on every
// call.
package main

import (
	"os"

	"chgo/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
