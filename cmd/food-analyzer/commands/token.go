package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"go-food-analyzer/internal/auth"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign an access token with JWT_SECRET for local testing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer := os.Getenv("JWT_ISSUER")
		v, err := auth.NewValidator(os.Getenv("JWT_SECRET"), issuer)
		if err != nil {
			return err
		}
		token, err := v.Issue(tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "local-user", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
