package cmd

import (
	"github.com/spf13/cobra"

	"github.com/olowe/batchmint-4337/models"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List tokens deployed by the owner's smart account",
	Long: `List every token the owner's smart account has deployed, read from the
token factory's TokenDeployed logs starting at the factory deploy block
(BATCH_MINT_TOKEN_FACTORY_DEPLOY_BLOCK / TESTNET_BATCH_MINT_TOKEN_FACTORY_DEPLOY_BLOCK).

Examples:
  batchmint tokens`,
	RunE: runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}

func runTokens(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tokens, err := a.deployer.Tokens(ctx)
	if err != nil {
		return err
	}
	if tokens == nil {
		tokens = []models.DeployedToken{}
	}
	return printJSON(cmd, tokens)
}
