package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"kongman/internal/storage"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change stored settings",
	Long: `Show and change settings kept in the database.

Values in the config file and command-line flags take precedence.`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := appInstance.Storage.GetAllSettings(context.Background())
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintln(w, "---\t-----")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\n", k, settings[k])
		}
		w.Flush()
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Print a setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := appInstance.Storage.GetSetting(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Change a setting",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := storage.ValidateSetting(key, value); err != nil {
			return err
		}
		if err := appInstance.Storage.SetSetting(context.Background(), key, value); err != nil {
			return fmt.Errorf("failed to save setting: %w", err)
		}
		fmt.Printf("%s = %s\n", key, value)
		return nil
	},
}

func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	keys := make([]string, 0, len(storage.DefaultSettings))
	for k := range storage.DefaultSettings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return prefixed(keys, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
