package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"kongman/internal/app"
	"kongman/internal/entity"
	"kongman/internal/gateway"
	"kongman/internal/storage/models"
)

// ensureApp lazily initializes appInstance for shell completion.
// Cobra may invoke ValidArgsFunction without running PersistentPreRunE.
func ensureApp(cmd *cobra.Command) error {
	if appInstance != nil {
		return nil
	}
	var err error
	appInstance, err = app.New(appOptions(cmd))
	return err
}

// completeGatewayNames provides shell completion for gateway names.
func completeGatewayNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return gatewayNames(cmd, toComplete)
}

// completeGatewayNamesForFlag provides gateway name completion for flags.
func completeGatewayNamesForFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return gatewayNames(cmd, toComplete)
}

func gatewayNames(cmd *cobra.Command, toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := ensureApp(cmd); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	gateways, err := appInstance.GatewayList(context.Background())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var completions []string
	for _, gw := range gateways {
		if strings.HasPrefix(strings.ToLower(gw.Name), strings.ToLower(toComplete)) {
			completions = append(completions, gw.Name)
		}
	}

	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeCollections completes the collection argument of entity commands.
func completeCollections(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return prefixed(entity.Collections, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeAuthTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	names := make([]string, len(models.AuthTypes))
	for i, t := range models.AuthTypes {
		names[i] = string(t)
	}
	return prefixed(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return prefixed([]string{string(gateway.FormatJSON), string(gateway.FormatYAML)}, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func prefixed(values []string, prefix string) []string {
	var out []string
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			out = append(out, v)
		}
	}
	return out
}
