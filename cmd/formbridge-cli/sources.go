package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// sourcesCmd represents the sources command
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage tabular sources",
	Long:  `Commands for registering, reloading, searching and removing tabular sources.`,
}

var listSourcesCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := request("GET", "/api/v1/sources", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var addSourceCmd = &cobra.Command{
	Use:   "add [fetch-url]",
	Short: "Register a new source from a published CSV URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		keyColumn, _ := cmd.Flags().GetString("key-column")

		body := map[string]string{
			"source_name": name,
			"fetch_url":   args[0],
			"key_column":  keyColumn,
		}
		var out map[string]interface{}
		if err := request("POST", "/api/v1/sources", body, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var removeSourceCmd = &cobra.Command{
	Use:   "remove [source-id]",
	Short: "Remove a source and every rule referencing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := request("DELETE", "/api/v1/sources/"+url.PathEscape(args[0]), nil, nil); err != nil {
			return err
		}
		fmt.Println("Source removed")
		return nil
	},
}

var reloadSourceCmd = &cobra.Command{
	Use:   "reload [source-id]",
	Short: "Re-fetch a source, replacing its columns and rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := request("POST", "/api/v1/sources/"+url.PathEscape(args[0])+"/reload", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var searchRowsCmd = &cobra.Command{
	Use:   "search [source-id] [query]",
	Short: "Search a source's rows against its key column",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) > 1 {
			query = args[1]
		}
		path := "/api/v1/sources/" + url.PathEscape(args[0]) + "/rows?q=" + url.QueryEscape(query)
		var out map[string]interface{}
		if err := request("GET", path, nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var selectRowCmd = &cobra.Command{
	Use:   "select [source-id] [row-index]",
	Short: "Choose a row of a source as resolution input",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rowIndex, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("row-index must be a number: %w", err)
		}
		body := map[string]int{"row_index": rowIndex}
		if err := request("PUT", "/api/v1/sources/"+url.PathEscape(args[0])+"/selection", body, nil); err != nil {
			return err
		}
		fmt.Println("Row selected")
		return nil
	},
}

var clearSelectionCmd = &cobra.Command{
	Use:   "clear-selection [source-id]",
	Short: "Clear the chosen row for one source, or all sources when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/v1/selection"
		if len(args) == 1 {
			path = "/api/v1/sources/" + url.PathEscape(args[0]) + "/selection"
		}
		if err := request("DELETE", path, nil, nil); err != nil {
			return err
		}
		fmt.Println("Selection cleared")
		return nil
	},
}

func setupSourceCommands() {
	addSourceCmd.Flags().String("name", "", "Display name for the source")
	addSourceCmd.Flags().String("key-column", "", "Column used for row lookup")

	sourcesCmd.AddCommand(listSourcesCmd)
	sourcesCmd.AddCommand(addSourceCmd)
	sourcesCmd.AddCommand(removeSourceCmd)
	sourcesCmd.AddCommand(reloadSourceCmd)
	sourcesCmd.AddCommand(searchRowsCmd)
	sourcesCmd.AddCommand(selectRowCmd)
	sourcesCmd.AddCommand(clearSelectionCmd)

	rootCmd.AddCommand(sourcesCmd)
}
