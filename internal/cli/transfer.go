package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"kongman/internal/gateway"
	"kongman/internal/paths"
)

var gatewayExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved gateways",
	Long: `Export every saved gateway and the active selection.

The output contains credentials in clear text.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		output, _ := cmd.Flags().GetString("output")
		formatName, _ := cmd.Flags().GetString("format")
		if !cmd.Flags().Changed("format") && output != "" {
			formatName = formatFromPath(output)
		}
		format, err := gateway.ParseFormat(formatName)
		if err != nil {
			return err
		}

		snap, err := appInstance.Gateways.Export(ctx)
		if err != nil {
			return fmt.Errorf("failed to export gateways: %w", err)
		}
		data, err := snap.Encode(format)
		if err != nil {
			return fmt.Errorf("failed to encode gateways: %w", err)
		}

		if output == "" || output == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		paths.ChownToRealUser(output)

		fmt.Fprintf(os.Stderr, "Exported %d gateways to %s\n", len(snap.Gateways), output)
		return nil
	},
}

var gatewayImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import gateways from an export",
	Long: `Import gateways from a JSON or YAML export. Use "-" to read stdin.

Gateways are matched by id; existing entries are overwritten. With
--replace every saved gateway is removed first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		formatName, _ := cmd.Flags().GetString("format")
		replace, _ := cmd.Flags().GetBool("replace")
		if !cmd.Flags().Changed("format") {
			formatName = formatFromPath(args[0])
		}
		format, err := gateway.ParseFormat(formatName)
		if err != nil {
			return err
		}

		var data []byte
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		snap, err := gateway.DecodeSnapshot(data, format)
		if err != nil {
			return err
		}

		if replace && !confirm(cmd, "Replace all saved gateways?") {
			fmt.Println("Cancelled.")
			return nil
		}

		if err := appInstance.Gateways.Import(ctx, snap, replace); err != nil {
			return fmt.Errorf("failed to import gateways: %w", err)
		}

		fmt.Printf("Imported %d gateways\n", len(snap.Gateways))
		return nil
	},
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return string(gateway.FormatYAML)
	}
	return string(gateway.FormatJSON)
}

func init() {
	gatewayExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	gatewayExportCmd.Flags().String("format", "json", "output format (json, yaml)")
	gatewayExportCmd.RegisterFlagCompletionFunc("format", completeFormats)

	gatewayImportCmd.Flags().String("format", "json", "input format (json, yaml)")
	gatewayImportCmd.Flags().Bool("replace", false, "remove existing gateways first")
	gatewayImportCmd.Flags().BoolP("force", "f", false, "skip confirmation")
	gatewayImportCmd.RegisterFlagCompletionFunc("format", completeFormats)

	gatewayCmd.AddCommand(gatewayExportCmd)
	gatewayCmd.AddCommand(gatewayImportCmd)
}
