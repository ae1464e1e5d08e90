// Command evalcore-worker is the sandboxed child process the tool runner
// spawns once per tool call. See pkg/toolworker for the implementation.
package main

import (
	"os"

	"github.com/promptmgr/evalcore/pkg/toolworker"
)

func main() {
	os.Exit(toolworker.Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
