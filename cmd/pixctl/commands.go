package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/baharkarakas/pix-reconciler/internal/app"
	"github.com/baharkarakas/pix-reconciler/internal/auth"
	"github.com/baharkarakas/pix-reconciler/internal/config"
	"github.com/baharkarakas/pix-reconciler/internal/db"
	"github.com/baharkarakas/pix-reconciler/internal/logger"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded Postgres migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()
			if err := db.RunMigrations(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations up to date")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the admin endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, exp, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, ttl).Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Operator name recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// pollCmd is the manual retry path: ask the provider now and reconcile the answer.
func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll [transactionId]",
		Short: "Fetch a transaction's status from the provider and reconcile it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Env)
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ProviderTimeout+10*time.Second)
			defer cancel()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Payments.Poll(ctx, args[0])
			if err != nil {
				return err
			}
			out := map[string]any{
				"transactionId": args[0],
				"outcome":       res.Outcome,
				"transitioned":  res.Transitioned,
			}
			if res.Transaction.ID != "" {
				out["state"] = res.Transaction.State
				out["origin"] = res.Transaction.Origin
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
