// Command dubctl is an operator-facing status inspector. It consumes
// the same JobView the redub API produces over HTTP and exercises no
// core pipeline logic of its own -- CLI/UI is explicitly scaffolding,
// per spec.md §1, kept only as a thin interface onto the core.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errAPIUnreachable) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
