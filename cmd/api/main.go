package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "imagehost",
		Short:         "Image hosting API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newTokenCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "imagehost:", err)
		os.Exit(1)
	}
}
