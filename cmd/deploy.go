package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/pipeline"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a batch of tokens from the owner's smart account",
	Long: `Deploy a batch of tokens in a single user operation.

The tokens file holds either {"tokens": [...]} or a bare array, each entry
with name, symbol and totalSupply (decimal string, smallest unit).
Stages are printed to stderr as they happen; the outcome is printed to stdout as JSON.

Examples:
  batchmint deploy --tokens tokens.json
  batchmint deploy --tokens tokens.json --quiet`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringP("tokens", "t", "", "path to the tokens JSON file (required)")
	deployCmd.Flags().BoolP("quiet", "q", false, "do not print stage transitions")
	_ = deployCmd.MarkFlagRequired("tokens")
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("tokens")
	quiet, _ := cmd.Flags().GetBool("quiet")

	req, err := readTokensFile(path)
	if err != nil {
		return err
	}
	tokens, err := req.ToTokenParams()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var onStage pipeline.StageFunc
	if !quiet {
		onStage = func(stage models.TxStage) {
			fmt.Fprintf(cmd.ErrOrStderr(), "stage: %s\n", stage)
		}
	}

	res, runErr := a.deployer.Deploy(ctx, tokens, onStage)
	if err := printJSON(cmd, res.Outcome); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("deployment failed: %w", runErr)
	}
	return nil
}

// readTokensFile 读取并校验代币文件
func readTokensFile(path string) (models.DeployTokensRequest, error) {
	var req models.DeployTokensRequest

	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read tokens file: %w", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		// 也接受裸数组
		var list []models.TokenParamRequest
		if errList := json.Unmarshal(data, &list); errList != nil {
			return req, fmt.Errorf("failed to parse tokens file: %w", err)
		}
		req.Tokens = list
	}

	if err := validator.New().Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return req, fmt.Errorf("invalid tokens file: %s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return req, fmt.Errorf("invalid tokens file: %w", err)
	}
	return req, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
