package main

import (
	"context"
	"fmt"
	"os"

	"github.com/c0deZ3R0/go-sync-engine/internal/cli"
)

func main() {
	if err := cli.Run(context.Background(), os.Args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
