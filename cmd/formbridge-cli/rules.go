package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage mapping rules",
	Long:  `Commands for setting, clearing, auto-mapping, exporting and importing mapping rules.`,
}

var listRulesCmd = &cobra.Command{
	Use:   "list",
	Short: "List all mapping rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := request("GET", "/api/v1/rules", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var setRuleCmd = &cobra.Command{
	Use:   "set [qid]",
	Short: "Set the rule for a question",
	Long: `Set the rule for a question. Exactly one rule source must be given.

Examples:
  # Map a question to a sheet column
  formbridge-cli rules set q3 --source-id 4f7c... --column "Email"

  # Map a question to a fixed choice value
  formbridge-cli rules set q5 --value "Blue"

  # Map a multi-choice question to fixed values
  formbridge-cli rules set q7 --values "Red,Blue"

  # Map a question to literal free text (empty is a deliberate clear)
  formbridge-cli rules set q9 --text "N/A"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceID, _ := cmd.Flags().GetString("source-id")
		column, _ := cmd.Flags().GetString("column")
		value, _ := cmd.Flags().GetString("value")
		values, _ := cmd.Flags().GetString("values")
		text, _ := cmd.Flags().GetString("text")

		body := map[string]interface{}{}
		switch {
		case sourceID != "" || column != "":
			body["type"] = "sheet_column"
			body["source_id"] = sourceID
			body["column"] = column
			if transform, _ := cmd.Flags().GetString("transform"); transform != "" {
				body["transform"] = transform
			}
		case values != "":
			body["type"] = "fixed_multi"
			body["values"] = strings.Split(values, ",")
		case cmd.Flags().Changed("value"):
			body["type"] = "fixed_single"
			body["value"] = value
		case cmd.Flags().Changed("text"):
			body["type"] = "free_text"
			body["value"] = text
		default:
			return fmt.Errorf("one of --source-id/--column, --value, --values or --text is required")
		}

		var out map[string]interface{}
		if err := request("PUT", "/api/v1/rules/"+url.PathEscape(args[0]), body, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var clearRuleCmd = &cobra.Command{
	Use:   "clear [qid]",
	Short: "Clear the rule for a question, or all rules when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/v1/rules"
		if len(args) == 1 {
			path += "/" + url.PathEscape(args[0])
		}
		if err := request("DELETE", path, nil, nil); err != nil {
			return err
		}
		fmt.Println("Rules cleared")
		return nil
	},
}

var autoMapCmd = &cobra.Command{
	Use:   "automap",
	Short: "Propose sheet-column rules from matching labels",
	Long:  `Map every unmapped question whose label equals a source column name (case-insensitive). Existing rules are never overwritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := request("POST", "/api/v1/rules/automap", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var exportRulesCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the rule store in its persisted JSON form",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := request("GET", "/api/v1/rules/export", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var importRulesCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace the rule store from an exported JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		var body map[string]interface{}
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("%s is not a rule export: %w", args[0], err)
		}
		var out map[string]interface{}
		if err := request("POST", "/api/v1/rules/import", body, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func setupRuleCommands() {
	setRuleCmd.Flags().String("source-id", "", "Source ID for a sheet-column rule")
	setRuleCmd.Flags().String("column", "", "Column name for a sheet-column rule")
	setRuleCmd.Flags().String("transform", "", "Transform for a sheet-column rule (none, trim, lowercase, uppercase, titlecase)")
	setRuleCmd.Flags().String("value", "", "Fixed single choice value")
	setRuleCmd.Flags().String("values", "", "Comma-separated fixed multi-choice values")
	setRuleCmd.Flags().String("text", "", "Literal free-text value")

	rulesCmd.AddCommand(listRulesCmd)
	rulesCmd.AddCommand(setRuleCmd)
	rulesCmd.AddCommand(clearRuleCmd)
	rulesCmd.AddCommand(autoMapCmd)
	rulesCmd.AddCommand(exportRulesCmd)
	rulesCmd.AddCommand(importRulesCmd)

	rootCmd.AddCommand(rulesCmd)
}
