package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"kongman/internal/monitor"
	"kongman/internal/probe"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Periodically test every saved gateway",
	Long: `Test every saved gateway on an interval until interrupted.

With --metrics-addr the latest results are exposed as Prometheus metrics
on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		metrics := monitor.NewMetrics()
		mon, err := appInstance.NewMonitor(interval, metrics)
		if err != nil {
			return err
		}
		mon.OnRound = func(batch *probe.BatchResult) {
			fmt.Printf("[%s] %d tested, %d up, %d down\n",
				time.Now().Format("15:04:05"), batch.Tested, batch.Succeeded, batch.Failed)
			for _, r := range batch.Results {
				if !r.Result.Success {
					fmt.Printf("  ✗ %s: %s\n", r.Gateway.Name, r.Result.Message)
				}
			}
		}

		var srv *http.Server
		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					appInstance.Log.Error("metrics server failed", "addr", metricsAddr, "error", err)
					stop()
				}
			}()
			fmt.Printf("Serving metrics on http://%s/metrics\n", metricsAddr)
		}

		if err := mon.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()

		fmt.Println("\nStopping monitor...")
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}
		return mon.Stop()
	},
}

func init() {
	monitorCmd.Flags().Duration("interval", 0, "time between rounds (default from settings)")
	monitorCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")

	rootCmd.AddCommand(monitorCmd)
}
