package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lorrc/service-desk-realtime/internal/auth"
	"github.com/lorrc/service-desk-realtime/internal/config"
	"github.com/lorrc/service-desk-realtime/internal/core/domain"
)

var (
	tokenAccess  string
	tokenRefresh string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the stored service desk credential",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an access and refresh token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenAccess == "" {
			return fmt.Errorf("--access is required")
		}
		cfg, err := config.Load(envFiles()...)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		identity, err := auth.NewTokenManager(cfg.Credentials.JWTSecret, 0).Resolve(tokenAccess)
		if err != nil {
			return fmt.Errorf("access token rejected: %w", err)
		}

		store, err := openTokenStore(cfg)
		if err != nil {
			return err
		}
		err = store.Save(cmd.Context(), domain.Credential{AccessToken: tokenAccess, RefreshToken: tokenRefresh})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored credential for %s (%s) in %s store\n",
			identity.UserID, strings.Join(identity.Roles, ","), cfg.Credentials.TokenStore)
		return nil
	},
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show who the stored credential belongs to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(envFiles()...)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		store, err := openTokenStore(cfg)
		if err != nil {
			return err
		}
		cred, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if cred.IsZero() {
			fmt.Fprintln(cmd.OutOrStdout(), "no credential stored")
			return nil
		}

		identity, err := auth.NewTokenManager(cfg.Credentials.JWTSecret, 0).Resolve(cred.AccessToken)
		if err != nil {
			return fmt.Errorf("stored access token unreadable: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user: %s\nroles: %s\nprivileged: %t\nrefresh token: %t\n",
			identity.UserID, strings.Join(identity.Roles, ","), identity.IsPrivileged(), cred.RefreshToken != "")
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(envFiles()...)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		store, err := openTokenStore(cfg)
		if err != nil {
			return err
		}
		return store.Clear(cmd.Context())
	},
}

func init() {
	tokenSetCmd.Flags().StringVar(&tokenAccess, "access", "", "access token (JWT)")
	tokenSetCmd.Flags().StringVar(&tokenRefresh, "refresh", "", "refresh token")
	tokenCmd.AddCommand(tokenSetCmd, tokenShowCmd, tokenClearCmd)
}
