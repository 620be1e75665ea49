package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "classchat",
		Short: "School chat server and terminal client",
	}
	root.AddCommand(newServeCmd(), newTailCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
