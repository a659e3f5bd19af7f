package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kunju1991/NSExchangefilings/internal/app"
	"github.com/kunju1991/NSExchangefilings/internal/config"
	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/logging"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var userID string

	root := &cobra.Command{
		Use:           "filingwatch",
		Short:         "Watch exchange filings for tracked symbols and push new ones",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id (telegram chat id)")

	root.AddCommand(
		newRunCmd(),
		newWatchCmd(),
		newAddCmd(&userID),
		newRemoveCmd(&userID),
		newListCmd(&userID),
	)
	return root
}

func buildApp(cmd *cobra.Command) (*app.Application, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)
	return app.New(cmd.Context(), cfg, logger)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute a single polling cycle and print its report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.RunCycle(cmd.Context())
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll on the configured interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Watch(ctx)
		},
	}
}

func newAddCmd(userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "add <symbol>",
		Short: "Track a symbol on the user's watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(*userID); err != nil {
				return err
			}
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			added, err := a.Watchlists().AddSymbol(cmd.Context(), *userID, args[0])
			if err != nil {
				return err
			}
			if added {
				cmd.Printf("added %s\n", args[0])
			} else {
				cmd.Printf("%s is already tracked\n", args[0])
			}
			return nil
		},
	}
}

func newRemoveCmd(userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <symbol>",
		Short: "Stop tracking a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(*userID); err != nil {
				return err
			}
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Watchlists().RemoveSymbol(cmd.Context(), *userID, args[0]); err != nil {
				return err
			}
			cmd.Printf("removed %s\n", args[0])
			return nil
		},
	}
}

func newListCmd(userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the user's tracked symbols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(*userID); err != nil {
				return err
			}
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			symbols, err := a.Watchlists().ListSymbols(cmd.Context(), *userID)
			if err != nil {
				return err
			}
			if len(symbols) == 0 {
				cmd.Println("no symbols tracked")
				return nil
			}
			for _, s := range symbols {
				cmd.Println(s)
			}
			return nil
		},
	}
}

func requireUser(userID string) error {
	if userID == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func printReport(cmd *cobra.Command, report domain.CycleReport) {
	cmd.Printf("cycle %s: %d symbols checked, %d delivered, %d fetch failures, %d delivery failures (%s)\n",
		report.CycleID,
		report.SymbolsChecked,
		report.Delivered,
		report.FetchFailures,
		report.DeliveryFailures,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	for _, e := range report.Errors {
		cmd.Printf("  %s/%s: %s\n", e.UserID, e.Symbol, e.Reason)
	}
}
