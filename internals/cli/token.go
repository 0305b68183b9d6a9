package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"healthmon/config"
	"healthmon/internals/security"
)

var (
	tokenSubject string
	tokenScope   string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the command API",
	Long: `Mint an HS256 bearer token signed with http.auth_secret. Send it as
"Authorization: Bearer <token>" on mutating API calls.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Token subject")
	tokenCmd.Flags().StringVar(&tokenScope, "scope", security.ScopeRead+" "+security.ScopeWrite, "Space separated scopes")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default http.token_ttl)")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ttl := cfg.HTTP.TokenTTL
	if tokenTTL > 0 {
		ttl = tokenTTL
	}

	tok, err := security.NewTokenService(cfg.HTTP.AuthSecret, ttl).GenerateAccessToken(tokenSubject, tokenScope)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
