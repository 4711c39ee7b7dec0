package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-food-analyzer/internal/prompts"
)

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List the accepted analysis variants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := prompts.Default()
		if err != nil {
			return err
		}
		for _, v := range catalog.Variants() {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(variantsCmd)
}
