package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prometric-ai/prometric/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "prometricd",
		Short: "Prometric daemon",
		Long:  "Prometric daemon for running the knowledge and assistant API server",
	}

	rootCmd.AddCommand(cli.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
