package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"kongman/internal/probe"
	"kongman/internal/storage"
	"kongman/internal/storage/models"
)

var gatewayCmd = &cobra.Command{
	Use:     "gateway",
	Aliases: []string{"gw"},
	Short:   "Manage gateway connection profiles",
	Long:    "Add, list, show, edit, select and delete saved gateway connections",
}

var gatewayAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a gateway connection",
	Long: `Add a gateway connection.

The connection is tested against the admin API before it is saved; use
--no-test to save it without contacting the gateway.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		adminURL, _ := cmd.Flags().GetString("url")
		variantName, _ := cmd.Flags().GetString("variant")
		skipTLS, _ := cmd.Flags().GetBool("skip-tls-verify")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		notes, _ := cmd.Flags().GetString("notes")
		noTest, _ := cmd.Flags().GetBool("no-test")
		use, _ := cmd.Flags().GetBool("use")

		variant, err := models.ParseVariant(variantName)
		if err != nil {
			return err
		}
		auth, err := authFromFlags(cmd)
		if err != nil {
			return err
		}

		gw := models.Gateway{
			Name:          args[0],
			AdminURL:      adminURL,
			Variant:       variant,
			SkipTLSVerify: skipTLS,
			Auth:          auth,
			Tags:          tags,
			Notes:         notes,
		}

		var id string
		if noTest {
			id, err = appInstance.AddGateway(ctx, gw)
			if err != nil {
				return fmt.Errorf("failed to save gateway: %w", err)
			}
		} else {
			fmt.Printf("Testing %s... ", gw.AdminURL)
			var result *probe.Result
			id, result, err = appInstance.AddTestedGateway(ctx, gw)
			if err != nil {
				fmt.Println()
				return fmt.Errorf("failed to save gateway: %w", err)
			}
			fmt.Println(result.Message)
			if !result.Success {
				return fmt.Errorf("gateway not saved (use --no-test to save it anyway): %w", result.Err())
			}
		}

		if use {
			if err := appInstance.SetActiveGateway(ctx, id); err != nil {
				return err
			}
		}

		fmt.Printf("Gateway added successfully!\n\n")
		fmt.Printf("  ID:       %s\n", id)
		fmt.Printf("  Name:     %s\n", gw.Name)
		fmt.Printf("  URL:      %s\n", gw.AdminURL)
		fmt.Printf("  Auth:     %s\n", models.RedactAuth(gw.Auth))
		if use {
			fmt.Printf("  Active:   yes\n")
		}
		return nil
	},
}

var gatewayListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved gateways",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		search, _ := cmd.Flags().GetString("search")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		authName, _ := cmd.Flags().GetString("auth")

		filter := storage.GatewayFilter{SearchTerm: search, Tags: tags}
		if authName != "" {
			authType, err := models.ParseAuthType(authName)
			if err != nil {
				return err
			}
			filter.AuthType = &authType
		}

		gateways, err := appInstance.Gateways.Find(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to get gateways: %w", err)
		}
		if len(gateways) == 0 {
			fmt.Println("No gateways found.")
			return nil
		}

		activeID, err := appInstance.Gateways.ActiveID(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tNAME\tURL\tAUTH\tVARIANT\tLAST TEST\tUSED")
		fmt.Fprintln(w, "\t----\t---\t----\t-------\t---------\t----")

		for _, gw := range gateways {
			marker := ""
			if gw.ID == activeID {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				marker, gw.Name, gw.AdminURL, gw.AuthType(), gw.Variant,
				latestProbe(ctx, gw.ID), gw.UseCount)
		}
		w.Flush()

		fmt.Printf("\nTotal: %d gateways\n", len(gateways))
		return nil
	},
}

var gatewayShowCmd = &cobra.Command{
	Use:               "show <id-or-name>",
	Short:             "Show gateway details",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGatewayNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		gw, err := appInstance.Gateways.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		activeID, err := appInstance.Gateways.ActiveID(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Gateway Details\n")
		fmt.Printf("═══════════════\n\n")
		fmt.Printf("ID:           %s\n", gw.ID)
		fmt.Printf("Name:         %s\n", gw.Name)
		fmt.Printf("Admin URL:    %s\n", gw.AdminURL)
		fmt.Printf("Variant:      %s\n", gw.Variant)
		fmt.Printf("Auth:         %s\n", models.RedactAuth(gw.Auth))
		fmt.Printf("Skip TLS:     %v\n", gw.SkipTLSVerify)
		fmt.Printf("Active:       %v\n", gw.ID == activeID)

		if len(gw.Tags) > 0 {
			fmt.Printf("Tags:         %v\n", gw.Tags)
		}
		if gw.Notes != "" {
			fmt.Printf("Notes:        %s\n", gw.Notes)
		}
		if gw.UseCount > 0 {
			fmt.Printf("Use Count:    %d\n", gw.UseCount)
		}
		if gw.LastUsed != nil {
			fmt.Printf("Last Used:    %s\n", gw.LastUsed.Format(time.RFC3339))
		}
		fmt.Printf("Created:      %s\n", gw.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Updated:      %s\n", gw.UpdatedAt.Format(time.RFC3339))

		latest, err := appInstance.Storage.GetLatestProbe(ctx, gw.ID)
		if err == nil && latest != nil {
			fmt.Printf("\nLatest Connection Test:\n")
			if latest.Success && latest.LatencyMS != nil {
				fmt.Printf("  Latency:    %d ms\n", *latest.LatencyMS)
			} else {
				fmt.Printf("  Status:     Failed\n")
			}
			if latest.StatusCode != 0 {
				fmt.Printf("  HTTP:       %d\n", latest.StatusCode)
			}
			fmt.Printf("  Message:    %s\n", latest.Message)
			fmt.Printf("  Tested:     %s\n", latest.TestedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var gatewayUpdateCmd = &cobra.Command{
	Use:               "update <id-or-name>",
	Aliases:           []string{"edit"},
	Short:             "Edit a gateway connection",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGatewayNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		gw, err := appInstance.Gateways.Resolve(ctx, args[0])
		if err != nil {
			return err
		}

		var auth models.AuthConfig
		if authFlagsChanged(cmd) {
			if auth, err = authFromFlags(cmd); err != nil {
				return err
			}
		}

		flags := cmd.Flags()
		updated, err := appInstance.Gateways.Update(ctx, gw.ID, func(gw *models.Gateway) error {
			if flags.Changed("name") {
				gw.Name, _ = flags.GetString("name")
			}
			if flags.Changed("url") {
				gw.AdminURL, _ = flags.GetString("url")
			}
			if flags.Changed("variant") {
				name, _ := flags.GetString("variant")
				v, err := models.ParseVariant(name)
				if err != nil {
					return err
				}
				gw.Variant = v
			}
			if flags.Changed("skip-tls-verify") {
				gw.SkipTLSVerify, _ = flags.GetBool("skip-tls-verify")
			}
			if flags.Changed("tags") {
				gw.Tags, _ = flags.GetStringSlice("tags")
			}
			if flags.Changed("notes") {
				gw.Notes, _ = flags.GetString("notes")
			}
			if auth != nil {
				gw.Auth = auth
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to update gateway: %w", err)
		}

		fmt.Printf("Gateway updated: %s\n", updated.Name)
		return nil
	},
}

var gatewayRemoveCmd = &cobra.Command{
	Use:               "remove <id-or-name>",
	Aliases:           []string{"rm", "delete"},
	Short:             "Delete a gateway connection",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGatewayNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		gw, err := appInstance.Gateways.Resolve(ctx, args[0])
		if err != nil {
			return err
		}

		if !confirm(cmd, fmt.Sprintf("Delete gateway '%s' (%s)?", gw.Name, gw.AdminURL)) {
			fmt.Println("Cancelled.")
			return nil
		}

		if err := appInstance.RemoveGateway(ctx, gw.ID); err != nil {
			return fmt.Errorf("failed to delete gateway: %w", err)
		}

		fmt.Printf("Gateway deleted: %s\n", gw.Name)
		return nil
	},
}

var gatewayUseCmd = &cobra.Command{
	Use:               "use [id-or-name]",
	Short:             "Select the active gateway",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeGatewayNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		if clearActive, _ := cmd.Flags().GetBool("clear"); clearActive {
			if err := appInstance.Gateways.ClearActive(ctx); err != nil {
				return err
			}
			fmt.Println("No active gateway.")
			return nil
		}
		if len(args) == 0 {
			return fmt.Errorf("please specify a gateway ID or name, or use --clear")
		}

		gw, err := appInstance.Gateways.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		if err := appInstance.SetActiveGateway(ctx, gw.ID); err != nil {
			return err
		}

		fmt.Printf("Active gateway: %s (%s)\n", gw.Name, gw.AdminURL)
		return nil
	},
}

var gatewayCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the active gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := appInstance.ActiveGateway(context.Background())
		if err != nil {
			return err
		}
		if gw == nil {
			fmt.Println("No active gateway.")
			return nil
		}
		fmt.Printf("%s (%s)\n", gw.Name, gw.AdminURL)
		return nil
	},
}

func latestProbe(ctx context.Context, gatewayID string) string {
	latest, err := appInstance.Storage.GetLatestProbe(ctx, gatewayID)
	if err != nil || latest == nil {
		return "-"
	}
	if latest.Success && latest.LatencyMS != nil {
		return fmt.Sprintf("%d ms", *latest.LatencyMS)
	}
	if latest.StatusCode != 0 {
		return fmt.Sprintf("fail (%d)", latest.StatusCode)
	}
	return "fail"
}

func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "admin API base URL")
	cmd.Flags().String("variant", "standard", "gateway edition (standard, enterprise)")
	cmd.Flags().StringSlice("tags", []string{}, "tags (comma-separated)")
	cmd.Flags().String("notes", "", "notes")
	addAuthFlags(cmd)

	cmd.RegisterFlagCompletionFunc("variant", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{string(models.VariantStandard), string(models.VariantEnterprise)}, cobra.ShellCompDirectiveNoFileComp
	})
}

func init() {
	addProfileFlags(gatewayAddCmd)
	gatewayAddCmd.MarkFlagRequired("url")
	gatewayAddCmd.Flags().Bool("no-test", false, "save without testing the connection")
	gatewayAddCmd.Flags().Bool("use", false, "make the new gateway active")

	addProfileFlags(gatewayUpdateCmd)
	gatewayUpdateCmd.Flags().String("name", "", "new name")

	gatewayListCmd.Flags().StringP("search", "s", "", "search name, URL and notes")
	gatewayListCmd.Flags().StringSlice("tag", []string{}, "filter by tag (repeatable)")
	gatewayListCmd.Flags().String("auth", "", "filter by auth type")
	gatewayListCmd.RegisterFlagCompletionFunc("auth", completeAuthTypes)

	gatewayRemoveCmd.Flags().BoolP("force", "f", false, "skip confirmation")
	gatewayUseCmd.Flags().Bool("clear", false, "clear the active selection")

	gatewayCmd.AddCommand(gatewayAddCmd)
	gatewayCmd.AddCommand(gatewayListCmd)
	gatewayCmd.AddCommand(gatewayShowCmd)
	gatewayCmd.AddCommand(gatewayUpdateCmd)
	gatewayCmd.AddCommand(gatewayRemoveCmd)
	gatewayCmd.AddCommand(gatewayUseCmd)
	gatewayCmd.AddCommand(gatewayCurrentCmd)
	rootCmd.AddCommand(gatewayCmd)
}
