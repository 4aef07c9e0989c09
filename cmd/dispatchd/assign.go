// README: assign and tick: one-shot dispatch runs against the live stores.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"resortdispatch/internal/app"
	"resortdispatch/internal/modules/request"
)

var assignDomain string

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Run one operator dispatch for a domain and print the outcome",
	RunE:  assign,
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Evaluate the auto-assign rules once",
	RunE:  tick,
}

func init() {
	assignCmd.Flags().StringVarP(&assignDomain, "domain", "d", "ride", "ride or service")
	rootCmd.AddCommand(assignCmd, tickCmd)
}

func assign(cmd *cobra.Command, args []string) error {
	domain, ok := request.ParseDomain(assignDomain)
	if !ok {
		return fmt.Errorf("unknown domain %q", assignDomain)
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		out, err := a.Matching.ProposeAssignment(ctx, domain)
		if err != nil {
			return err
		}
		return printJSON(out)
	})
}

func tick(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		out, err := a.Scheduler.Tick(ctx)
		if err != nil {
			return err
		}
		return printJSON(out)
	})
}

func withApp(fn func(context.Context, *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
