package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
	"kongman/internal/entity"
)

var entityCmd = &cobra.Command{
	Use:     "entity",
	Aliases: []string{"e"},
	Short:   "Work with admin API entities of the active gateway",
	Long: `List, show, create, update and delete entities of the active gateway.

The collection is any admin API collection name, for example services,
routes, consumers, plugins or upstreams.`,
}

var entityListCmd = &cobra.Command{
	Use:               "list <collection>",
	Aliases:           []string{"ls"},
	Short:             "List entities",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeCollections,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		allPages, _ := cmd.Flags().GetBool("all-pages")
		output, _ := cmd.Flags().GetString("output")

		collection := appInstance.EntityClient(args[0])
		var (
			items []entity.Generic
			err   error
		)
		if allPages {
			items, err = collection.ListPages(ctx)
		} else {
			items, err = collection.ListAll(ctx)
		}
		if err != nil {
			return err
		}

		if output != "table" {
			return writeEntity(items, output)
		}
		if len(items) == 0 {
			fmt.Printf("No %s found.\n", collection.Name())
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTAGS")
		fmt.Fprintln(w, "--\t----\t----")
		for _, item := range items {
			id, _ := item["id"].(string)
			fmt.Fprintf(w, "%s\t%s\t%s\n", id, entity.DisplayName(item), tagList(item))
		}
		w.Flush()

		fmt.Printf("\nTotal: %d %s\n", len(items), collection.Name())
		return nil
	},
}

var entityGetCmd = &cobra.Command{
	Use:               "get <collection> <id-or-name>",
	Short:             "Show one entity",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeCollections,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		item, err := appInstance.EntityClient(args[0]).GetOne(context.Background(), args[1])
		if err != nil {
			return err
		}
		return writeEntity(item, output)
	},
}

var entityCreateCmd = &cobra.Command{
	Use:               "create <collection>",
	Short:             "Create an entity",
	Long:              "Create an entity from a JSON body given with --data or --file (\"-\" reads stdin). Comments and trailing commas are allowed.",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeCollections,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		body, err := readBody(cmd)
		if err != nil {
			return err
		}
		created, err := appInstance.EntityClient(args[0]).Create(context.Background(), body)
		if err != nil {
			return err
		}
		return writeEntity(created, output)
	},
}

var entityUpdateCmd = &cobra.Command{
	Use:               "update <collection> <id-or-name>",
	Short:             "Apply a partial update to an entity",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeCollections,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		patch, err := readBody(cmd)
		if err != nil {
			return err
		}
		updated, err := appInstance.EntityClient(args[0]).Update(context.Background(), args[1], patch)
		if err != nil {
			return err
		}
		return writeEntity(updated, output)
	},
}

var entityDeleteCmd = &cobra.Command{
	Use:               "delete <collection> <id-or-name>",
	Aliases:           []string{"rm"},
	Short:             "Delete an entity",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeCollections,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirm(cmd, fmt.Sprintf("Delete %s/%s?", args[0], args[1])) {
			fmt.Println("Cancelled.")
			return nil
		}
		if err := appInstance.EntityClient(args[0]).Delete(context.Background(), args[1]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s/%s\n", args[0], args[1])
		return nil
	},
}

// readBody loads the request body from --data or --file.
func readBody(cmd *cobra.Command) (entity.Generic, error) {
	data, _ := cmd.Flags().GetString("data")
	file, _ := cmd.Flags().GetString("file")

	var raw []byte
	switch {
	case data != "" && file != "":
		return nil, fmt.Errorf("use either --data or --file, not both")
	case data != "":
		raw = []byte(data)
	case file == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		raw = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("a request body is required (--data or --file)")
	}

	var body entity.Generic
	if err := json.Unmarshal(jsonc.ToJSON(raw), &body); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return body, nil
}

func writeEntity(v any, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "json", "table", "":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown output format: %s", format)
}

func tagList(item entity.Generic) string {
	raw, _ := item["tags"].([]any)
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	sort.Strings(tags)
	return strings.Join(tags, ",")
}

func addOutputFlag(cmd *cobra.Command, def string) {
	cmd.Flags().StringP("output", "o", def, "output format (table, json, yaml)")
	cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func init() {
	addOutputFlag(entityListCmd, "table")
	for _, c := range []*cobra.Command{entityGetCmd, entityCreateCmd, entityUpdateCmd} {
		addOutputFlag(c, "json")
	}
	entityListCmd.Flags().Bool("all-pages", false, "follow pagination and list the whole collection")

	for _, c := range []*cobra.Command{entityCreateCmd, entityUpdateCmd} {
		c.Flags().StringP("data", "d", "", "inline JSON body")
		c.Flags().StringP("file", "f", "", "file holding the JSON body (\"-\" for stdin)")
	}
	entityDeleteCmd.Flags().Bool("force", false, "skip confirmation")

	entityCmd.AddCommand(entityListCmd)
	entityCmd.AddCommand(entityGetCmd)
	entityCmd.AddCommand(entityCreateCmd)
	entityCmd.AddCommand(entityUpdateCmd)
	entityCmd.AddCommand(entityDeleteCmd)
	rootCmd.AddCommand(entityCmd)
}
