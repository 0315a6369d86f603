// Package cmd batchmint 命令行。
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "batchmint",
	Short: "Batch ERC-20 deployment through an ERC-4337 smart account",
	Long: `batchmint builds a single ERC-4337 user operation that deploys a batch of tokens
from the owner's smart account, signs it, tops up the Entry Point deposit when
needed, submits it through handleOps and reports the tokens deployed or skipped.

Configuration is read from the environment (and .env), optionally overlaid by
config.yaml in the working directory.`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
