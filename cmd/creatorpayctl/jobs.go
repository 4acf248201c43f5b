package main

import (
	"context"
	"encoding/json"
	"fmt"

	"creatorpay/internal/app"
	"creatorpay/internal/money"

	"github.com/spf13/cobra"
)

func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func reconcileCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare every wallet balance against its ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				drift, err := a.Wallet.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return json.NewEncoder(out).Encode(drift)
				}
				if len(drift) == 0 {
					fmt.Fprintln(out, "all balances match their ledgers")
					return nil
				}
				for _, d := range drift {
					fmt.Fprintf(out, "%s balance=%s ledger=%s difference=%s\n",
						d.AccountID, money.FormatMinor(d.AccountBalance), money.FormatMinor(d.LedgerSum), money.FormatMinor(d.Difference))
				}
				return fmt.Errorf("%d account(s) drifted", len(drift))
			})
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Flag expiring subscriptions and expire lapsed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Subscriptions.SweepExpirations(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expiring=%d expired=%d\n", result.Expiring, result.Expired)
				return nil
			})
		},
	}
}
