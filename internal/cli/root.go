package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"kongman/internal/app"
	pkgerrors "kongman/pkg/errors"
)

var (
	appInstance *app.App
	version     = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kongman",
	Short: "Kong admin console for the terminal",
	Long: `kongman - manage Kong gateways from your terminal

  Save connection profiles for one or more Kong admin APIs, pick the active
  one, and work with its services, routes, consumers and plugins.

  Quick start:
    kongman gateway add local --url http://localhost:8001
    kongman gateway use local
    kongman entity list services
    kongman test --all

  Core features:
    • Connection profiles with basic, api-key and JWT (HS256) auth
    • Connection testing against /status with history
    • Generic CRUD over any admin API collection
    • Periodic health monitoring with Prometheus metrics`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closeApp()
		var err error
		appInstance, err = app.New(appOptions(cmd))
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

// Execute executes the root command
func Execute() {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when a command fails.
	closeApp()
	if err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		fmt.Fprint(os.Stderr, describeError(err, verbose))
		os.Exit(1)
	}
}

// describeError formats a command failure. Admin API errors hide their
// low-level cause unless verbose is set.
func describeError(err error, verbose bool) string {
	out := fmt.Sprintf("Error: %v\n", err)
	var apiErr *pkgerrors.APIError
	if verbose && errors.As(err, &apiErr) && apiErr.Cause() != nil {
		out += fmt.Sprintf("  cause: %v\n", apiErr.Cause())
	}
	return out
}

func closeApp() error {
	if appInstance == nil {
		return nil
	}
	err := appInstance.Close()
	appInstance = nil
	return err
}

func appOptions(cmd *cobra.Command) app.Options {
	configPath, _ := cmd.Flags().GetString("config")
	dbPath, _ := cmd.Flags().GetString("db")
	logLevel, _ := cmd.Flags().GetString("log-level")
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = "debug"
	}
	return app.Options{ConfigPath: configPath, DBPath: dbPath, LogLevel: logLevel}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "database path (\":memory:\" for a throwaway store)")

	rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kongman %s\n", version)
	},
}
