/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_rundown/internal/auth"
)

var (
	tokenUser   string
	tokenRoles  []string
	tokenStudio string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token signed with the configured key",
	Long: `Issues an HS256 token for the playout API.

Examples:
  grimnir-rundown token --user desk-1 --role operator --studio studio-a
  grimnir-rundown token --user monitor --role viewer --ttl 720h`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User id stored in the token (required)")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{auth.RoleOperator}, "Roles: admin, operator, viewer")
	tokenCmd.Flags().StringVar(&tokenStudio, "studio", "", "Restrict the token to one studio")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.JWTSigningKey == "" {
		return fmt.Errorf("GRIMNIR_JWT_SIGNING_KEY is not set")
	}
	for _, role := range tokenRoles {
		switch role {
		case auth.RoleAdmin, auth.RoleOperator, auth.RoleViewer:
		default:
			return fmt.Errorf("unknown role %q", role)
		}
	}

	token, err := auth.Issue([]byte(cfg.JWTSigningKey), auth.Claims{
		UserID:   tokenUser,
		Roles:    tokenRoles,
		StudioID: tokenStudio,
	}, tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
