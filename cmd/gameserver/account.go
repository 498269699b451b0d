package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/fairway/internal/auth"
	"github.com/cory-johannsen/fairway/internal/storage/postgres"
)

// defaultStarterType is the character type id given to new accounts.
const defaultStarterType = 0x04000000

func newAccountCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Provision accounts and login tickets",
	}
	cmd.AddCommand(newAccountCreateCmd(opts))
	cmd.AddCommand(newAccountTicketCmd(opts))
	return cmd
}

func newAccountCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		username string
		nickname string
		starter  uint32
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with statistics and a starter character",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if nickname == "" {
				nickname = username
			}
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := postgres.NewPool(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()

			acct, err := postgres.NewAccountRepository(pool.DB()).Create(ctx, username, nickname, starter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created account id=%d username=%s character=%d\n",
				acct.ID, acct.Username, acct.EquippedCharacterID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&nickname, "nickname", "", "display name (defaults to username)")
	cmd.Flags().Uint32Var(&starter, "starter-type", defaultStarterType, "starter character type id")
	return cmd
}

func newAccountTicketCmd(opts *rootOptions) *cobra.Command {
	var (
		accountID uint32
		username  string
		nickname  string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Sign a login ticket for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if accountID == 0 || username == "" {
				return errors.New("--account-id and --username are required")
			}
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			tok, err := auth.NewIssuer(cfg.Auth).Issue(auth.Ticket{
				AccountID: accountID,
				Username:  username,
				Nickname:  nickname,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&accountID, "account-id", 0, "account id")
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&nickname, "nickname", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "ticket lifetime")
	return cmd
}
