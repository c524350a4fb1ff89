package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cbtrader/config"
	"cbtrader/exchange"
	"cbtrader/internal/metrics"
	"cbtrader/logger"
	"cbtrader/models"
	"cbtrader/scheduler"
	"cbtrader/strategy"
	"cbtrader/trader"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Trade at every hour boundary until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runTrader(ctx, cfg)
		},
	}
}

func runTrader(ctx context.Context, cfg *config.Config) error {
	log := logger.GetLogger().WithComponent("main")

	creds, err := config.LoadCredentials(cfg)
	if err != nil {
		return err
	}
	client, err := exchange.NewClient(cfg.Exchange, exchange.WithCredentials(creds))
	if err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Trader.Name,
		"version":     cfg.Trader.Version,
		"environment": config.AppEnvironment(),
		"product":     cfg.Strategy.Product,
		"credentials": creds.String(),
	}).Info("starting cbtrader")

	metrics.Init(ctx, cfg.Metrics.ListenAddr)
	if cw := cfg.Metrics.CloudWatch; cw.Enabled {
		logger.InitCloudWatch(ctx, logger.CloudWatchOptions{
			Region:          cw.Region,
			Namespace:       cw.Namespace,
			AccessKeyID:     cw.AccessKeyID,
			SecretAccessKey: cw.SecretAccessKey,
		})
	}

	if _, err := checkClockSkew(ctx, client, cfg.Exchange.MaxClockSkew, time.Now); err != nil {
		log.WithError(err).Warn("could not read exchange time")
	}
	if err := verifyCredentials(ctx, client); err != nil {
		return err
	}

	history, err := strategy.NewHistory(client, cfg.Strategy, nil)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(cfg.Strategy, history, trader.NewGuard(client), trader.NewExecutor(client))
	if err != nil {
		return err
	}

	if err := sched.Run(ctx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// ServerClock reads the exchange time.
type ServerClock interface {
	ServerTime(ctx context.Context) (*models.ServerTime, error)
}

// checkClockSkew compares the local clock with the exchange's and warns
// when they drift further apart than maxSkew, since signed requests carry the
// local timestamp.
func checkClockSkew(ctx context.Context, src ServerClock, maxSkew time.Duration, now func() time.Time) (time.Duration, error) {
	st, err := src.ServerTime(ctx)
	if err != nil {
		return 0, err
	}
	skew := now().Sub(st.Time())
	abs := skew
	if abs < 0 {
		abs = -abs
	}
	entry := logger.GetLogger().WithComponent("main").WithFields(logger.Fields{"skew": skew.String()})
	if maxSkew > 0 && abs > maxSkew {
		entry.WithFields(logger.Fields{"max_skew": maxSkew.String()}).Warn("local clock differs from exchange clock")
	} else {
		entry.Debug("clock skew within bounds")
	}
	return skew, nil
}

// AccountLister is the private endpoint used to probe the credentials.
type AccountLister interface {
	Accounts(ctx context.Context) ([]models.Account, error)
}

// verifyCredentials fails only when the exchange rejects the credentials.
// Other failures are logged and left for the first tick to surface.
func verifyCredentials(ctx context.Context, src AccountLister) error {
	log := logger.GetLogger().WithComponent("main")
	accounts, err := src.Accounts(ctx)
	switch {
	case err == nil:
		log.WithFields(logger.Fields{"accounts": len(accounts)}).Info("credentials accepted")
		return nil
	case exchange.IsAuthError(err):
		return fmt.Errorf("exchange rejected credentials: %w", err)
	default:
		log.WithError(err).Warn("could not verify credentials")
		return nil
	}
}

func signalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signal",
		Short: "Evaluate the crossover once and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := exchange.NewClient(cfg.Exchange)
			if err != nil {
				return err
			}
			history, err := strategy.NewHistory(client, cfg.Strategy, nil)
			if err != nil {
				return err
			}
			res, err := history.Evaluate(cmd.Context())
			if err != nil {
				return err
			}
			return printSignal(cmd, cfg.Strategy, res)
		},
	}
}

func printSignal(cmd *cobra.Command, sc config.StrategyConfig, res strategy.Result) error {
	trend := "down"
	if res.Up {
		trend = "up"
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "product\t%s\n", sc.Product)
	fmt.Fprintf(w, "candles\t%d\n", res.Candles)
	fmt.Fprintf(w, "last close\t%s (%s)\n", res.Last.Close, res.Last.Time().Format(time.RFC3339))
	fmt.Fprintf(w, "short mean (%d)\t%s\n", sc.ShortWindow, res.ShortMean.StringFixed(2))
	fmt.Fprintf(w, "long mean (%d)\t%s\n", sc.LongWindow, res.LongMean.StringFixed(2))
	fmt.Fprintf(w, "signal\t%s\n", trend)
	return w.Flush()
}

func balancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "List account balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := config.LoadCredentials(cfg)
			if err != nil {
				return err
			}
			client, err := exchange.NewClient(cfg.Exchange, exchange.WithCredentials(creds))
			if err != nil {
				return err
			}
			accounts, err := client.Accounts(cmd.Context())
			if err != nil {
				return err
			}
			return printBalances(cmd, accounts)
		},
	}
}

func printBalances(cmd *cobra.Command, accounts []models.Account) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CURRENCY\tBALANCE\tAVAILABLE\tHOLD")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Currency, a.Balance, a.Available, a.Hold)
	}
	return w.Flush()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", cfg.Trader.Name, cfg.Trader.Version)
		},
	}
}
