package cmd

import (
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the owner's smart account",
	Long: `Show the owner address, its counterfactual smart account, whether the account
is deployed, its Entry Point deposit and (when not deployed) the estimated
creation gas.

Examples:
  batchmint account`,
	RunE: runAccount,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

type accountOutput struct {
	Owner        string `json:"owner"`
	SmartAccount string `json:"smartAccount"`
	Deployed     bool   `json:"deployed"`
	Deposit      string `json:"deposit"`
	CreationGas  string `json:"creationGas,omitempty"`
}

func runAccount(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.deployer.Account(ctx)
	if err != nil {
		return err
	}
	out := accountOutput{
		Owner:        info.Owner.Hex(),
		SmartAccount: info.SmartAccount.Hex(),
		Deployed:     info.Deployed,
		Deposit:      "0",
	}
	if info.Deposit != nil {
		out.Deposit = info.Deposit.String()
	}
	if info.CreationGas != nil {
		out.CreationGas = info.CreationGas.String()
	}
	return printJSON(cmd, out)
}
