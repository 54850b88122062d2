package cli

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var recommendUserID int64

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Compute recommendations for one user and print them as JSON",
	Long: `Compute recommendations for one user against the configured stores.

The result goes through the same cache as the service, so a recent result
for the user is printed as cached.

Examples:
  recsvc recommend --user-id 42`,
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().Int64Var(&recommendUserID, "user-id", 0, "user to compute recommendations for")
	_ = recommendCmd.MarkFlagRequired("user-id")
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	if recommendUserID <= 0 {
		return fmt.Errorf("--user-id must be a positive integer")
	}
	ctx := cmd.Context()

	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.engine.Recommend(ctx, recommendUserID)
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
