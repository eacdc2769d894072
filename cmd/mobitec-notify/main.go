// cmd/mobitec-notify/main.go
package main

import (
	"fmt"
	"os"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
