package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"kongman/internal/client"
	"kongman/internal/probe"
)

var testCmd = &cobra.Command{
	Use:   "test [id-or-name]",
	Short: "Test gateway connections",
	Long: `Test that a gateway's admin API is reachable and accepts its credentials.

Test a saved gateway by ID or name, every saved gateway with --all, or an
unsaved connection with --url plus the auth flags. The default strategy
requests /status; --strategy tcp only checks that the port accepts
connections.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeGatewayNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		all, _ := cmd.Flags().GetBool("all")
		adHocURL, _ := cmd.Flags().GetString("url")
		asJSON, _ := cmd.Flags().GetBool("json")

		tester, err := testerFromFlags(cmd)
		if err != nil {
			return err
		}

		switch {
		case all:
			return runBatchTest(ctx, tester)
		case adHocURL != "":
			auth, err := authFromFlags(cmd)
			if err != nil {
				return err
			}
			skipTLS, _ := cmd.Flags().GetBool("skip-tls-verify")
			result := tester.Test(ctx, probe.Candidate{AdminURL: adHocURL, SkipTLSVerify: skipTLS, Auth: auth})
			return printResult(adHocURL, result, asJSON)
		case len(args) == 0:
			return fmt.Errorf("please specify a gateway ID or name, or use --all / --url")
		}

		gw, err := appInstance.Gateways.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(gw.Name, tester.TestSaved(ctx, gw).Result, asJSON)
	},
}

var testHistoryCmd = &cobra.Command{
	Use:               "history <id-or-name>",
	Short:             "Show connection test history",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGatewayNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		limit, _ := cmd.Flags().GetInt("limit")

		gw, err := appInstance.Gateways.Resolve(ctx, args[0])
		if err != nil {
			return err
		}

		history, err := appInstance.Storage.GetProbeHistory(ctx, gw.ID, limit)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Printf("No test history for %s\n", gw.Name)
			return nil
		}

		fmt.Printf("Test History: %s (%s)\n", gw.Name, gw.AdminURL)
		fmt.Println(strings.Repeat("═", 50))
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tHTTP\tLATENCY\tSTATUS\tMESSAGE")
		fmt.Fprintln(w, "----\t----\t-------\t------\t-------")

		for _, entry := range history {
			latStr := "N/A"
			statusStr := "FAIL"
			if entry.Success && entry.LatencyMS != nil {
				latStr = fmt.Sprintf("%d ms", *entry.LatencyMS)
				statusStr = "OK"
			}
			code := "-"
			if entry.StatusCode != 0 {
				code = fmt.Sprintf("%d", entry.StatusCode)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				entry.TestedAt.Local().Format("2006-01-02 15:04:05"), code, latStr, statusStr,
				truncateName(entry.Message, 60))
		}
		w.Flush()

		return nil
	},
}

// testerFromFlags returns the application tester unless a flag overrides
// its strategy, concurrency or timeout.
func testerFromFlags(cmd *cobra.Command) (*probe.Tester, error) {
	flags := cmd.Flags()
	if !flags.Changed("strategy") && !flags.Changed("workers") && !flags.Changed("timeout") {
		return appInstance.Tester, nil
	}

	strategyName, _ := flags.GetString("strategy")
	strategy, err := probe.NewStrategy(strategyName)
	if err != nil {
		return nil, err
	}

	workers := int64(appInstance.Config.ProbeWorkers)
	if flags.Changed("workers") {
		workers, _ = flags.GetInt64("workers")
	}
	timeout := appInstance.Config.ProbeTimeout
	if flags.Changed("timeout") {
		ms, _ := flags.GetInt64("timeout")
		timeout = time.Duration(ms) * time.Millisecond
	}

	return probe.NewTester(appInstance.Storage, probe.TesterConfig{
		Workers:       workers,
		Timeout:       timeout,
		Strategy:      strategy,
		ClientOptions: []client.Option{client.WithLogger(appInstance.Log.WithComponent("client"))},
	}, appInstance.Log), nil
}

func printResult(target string, result *probe.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("Testing %s... ", target)
	if result.Success {
		fmt.Printf("%d ms\n", result.Latency.Milliseconds())
	} else {
		fmt.Printf("FAILED\n")
	}
	fmt.Printf("  %s\n", result.Message)
	return result.Err()
}

func runBatchTest(ctx context.Context, tester *probe.Tester) error {
	gateways, err := appInstance.GatewayList(ctx)
	if err != nil {
		return err
	}
	if len(gateways) == 0 {
		fmt.Println("No gateways found.")
		return nil
	}

	fmt.Printf("Testing %d gateways...\n\n", len(gateways))

	progress := func(result *probe.GatewayResult, current, total int) {
		if result.Result.Success {
			fmt.Printf("  [%d/%d] %-40s %d ms\n", current, total,
				truncateName(result.Gateway.Name, 40), result.Result.Latency.Milliseconds())
		} else {
			fmt.Printf("  [%d/%d] %-40s FAILED\n", current, total,
				truncateName(result.Gateway.Name, 40))
		}
	}

	batch := tester.TestBatch(ctx, gateways, progress)

	fmt.Printf("\n\nResults (sorted by latency):\n")
	fmt.Println(strings.Repeat("─", 75))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tURL\tLATENCY\tSTATUS")
	fmt.Fprintln(w, "-\t----\t---\t-------\t------")

	for i, result := range batch.Results {
		latStr := "N/A"
		statusStr := "FAIL"
		if result.Result.Success {
			latStr = fmt.Sprintf("%d ms", result.Result.Latency.Milliseconds())
			statusStr = "OK"
		} else if result.Result.StatusCode != 0 {
			statusStr = fmt.Sprintf("FAIL (%d)", result.Result.StatusCode)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			i+1, truncateName(result.Gateway.Name, 35), result.Gateway.AdminURL,
			latStr, statusStr)
	}
	w.Flush()

	fmt.Printf("\nSummary: %d tested, %d succeeded, %d failed (%.1fs)\n",
		batch.Tested, batch.Succeeded, batch.Failed, batch.Duration.Seconds())

	return nil
}

func truncateName(name string, maxLen int) string {
	if len(name) <= maxLen {
		return name
	}
	return name[:maxLen-3] + "..."
}

func init() {
	testCmd.Flags().StringP("strategy", "s", "status", "test strategy (status, tcp)")
	testCmd.Flags().Int64P("workers", "w", 10, "number of concurrent workers")
	testCmd.Flags().Int64P("timeout", "t", 5000, "per-test timeout in milliseconds")
	testCmd.Flags().Bool("all", false, "test all saved gateways")
	testCmd.Flags().String("url", "", "test an unsaved admin API URL")
	testCmd.Flags().Bool("json", false, "print the result as JSON")
	addAuthFlags(testCmd)

	testCmd.RegisterFlagCompletionFunc("strategy", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"status", "tcp"}, cobra.ShellCompDirectiveNoFileComp
	})

	testHistoryCmd.Flags().IntP("limit", "n", 20, "number of history entries")

	testCmd.AddCommand(testHistoryCmd)
	rootCmd.AddCommand(testCmd)
}
