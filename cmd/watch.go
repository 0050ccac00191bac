package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sei-bridge/pkg/app"
)

var (
	watchMetrics  bool
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow balances and the source block height",
	Long: `Connect both wallets and keep their balances current. Balances are
re-read on every new source block and on every wallet change.

With --metrics (or metrics.enabled in the config) a Prometheus endpoint is
served on metrics.addr.

Examples:
  sei-bridge watch
  sei-bridge watch --interval 30s
  sei-bridge watch --metrics`,
	Args: cobra.NoArgs,
	Run:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchMetrics, "metrics", false, "Serve Prometheus metrics")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 10*time.Second, "How often to print the balances")
}

func runWatch(cmd *cobra.Command, args []string) {
	a, cfg, cleanup, err := loadApp(cmd, false, nil)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.Sessions.ConnectSource(ctx); err != nil {
		color.Red("Source wallet: %v", err)
	}
	if _, err := a.Sessions.ConnectDestination(ctx); err != nil {
		color.Red("Sei wallet: %v", err)
	}

	fmt.Printf("\nWatching balances. Printing every %s. Press Ctrl+C to stop.\n", watchInterval)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Monitor(ctx)
	})

	if watchMetrics || cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(ctx, a, cfg.Metrics.Addr)
		})
	}

	g.Go(func() error {
		printView(a)

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				printView(a)
			}
		}
	})

	if err := g.Wait(); err != nil {
		printError(err)
		cleanup()
		os.Exit(1)
	}
}

func printView(a *app.App) {
	view := a.View()
	fmt.Printf("[%s] ", time.Now().Format("15:04:05"))
	if view.BlockHeight > 0 {
		fmt.Printf("block %s  ", color.HiBlackString("%d", view.BlockHeight))
	}
	fmt.Printf("source %s  sei %s\n",
		formatBalance(view.Source, view.SourceBal),
		formatBalance(view.Destination, view.DestBal))
}

func serveMetrics(ctx context.Context, a *app.App, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	color.Cyan("Serving metrics on %s/metrics\n", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
