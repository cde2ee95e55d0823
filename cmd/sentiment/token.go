package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicekwell/easyweb3-sentiment/internal/auth"
)

var (
	tokenEmail string
	tokenRole  string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed token for the admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}
		j := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: ttl}
		tok, exp, err := j.Sign(auth.Claims{Email: tokenEmail, Role: tokenRole})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires %s\n", tok, exp.Format(time.RFC3339))
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleAdmin, "role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default auth.token_ttl)")
}
