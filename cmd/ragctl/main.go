package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var apiFlag string
	rootCmd := &cobra.Command{
		Use:           "ragctl",
		Short:         "CLI client for the rag-server REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", envOr("RAGCTL_API", "http://localhost:8000"), "rag-server base URL")
	api := func() string { return apiFlag }

	rootCmd.AddCommand(
		newCreateCmd(api),
		newListCmd(api),
		newAskCmd(api),
		newSummarizeCmd(api),
		newHistoryCmd(api),
		newResetCmd(api),
		newHealthCmd(api),
	)
	return rootCmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
