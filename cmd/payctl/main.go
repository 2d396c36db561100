// Command payctl is the operator tool for schema migrations and payment fixes.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/MikeMC777/ordenes-pagos/internal/app"
	"github.com/MikeMC777/ordenes-pagos/internal/config"
	"github.com/MikeMC777/ordenes-pagos/internal/db"
	"github.com/MikeMC777/ordenes-pagos/internal/gateway"
	"github.com/MikeMC777/ordenes-pagos/internal/payment"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "payctl",
		Short:        "operate the orders and payments service",
		SilenceUsage: true,
	}
	root.AddCommand(
		migrateCommand(),
		verifyCommand(),
		markPaidCommand(),
		hashAdminKeyCommand(),
	)
	return root
}

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or roll back schema migrations",
	}
	up := &cobra.Command{
		Use:   "up",
		Short: "migrate all the way up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.MigrateUp(config.Load().PostgresDSN); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return errors.New("--steps must be positive")
			}
			if err := db.MigrateDown(config.Load().PostgresDSN, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(up, down)
	return cmd
}

// withApp runs fn against the application built from the environment.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.New(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func verifyCommand() *cobra.Command {
	var req payment.VerifyRequest
	var gw string
	cmd := &cobra.Command{
		Use:   "verify <order-id>",
		Short: "ask the gateway about an order's payment and apply an approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.OrderID = args[0]
			req.Gateway = gateway.Name(gw)
			return withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Payments.Verify(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&req.PaymentID, "payment", "", "gateway transaction/payment id")
	cmd.Flags().StringVar(&gw, "gateway", string(gateway.Wompi), "wompi or mercadopago")
	return cmd
}

func markPaidCommand() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "mark-paid <order-id>",
		Short: "mark an order paid by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Payments.MarkPaidManually(cmd.Context(), args[0], actor)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "payctl", "who is marking the order")
	return cmd
}

func hashAdminKeyCommand() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-admin-key [key]",
		Short: "print the bcrypt hash for ADMIN_KEY_HASH (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("empty key")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
