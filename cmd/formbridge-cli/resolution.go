package main

import (
	"github.com/spf13/cobra"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Preview the resolved values and missing required mappings",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := request("GET", "/api/v1/resolution", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

// prefillCmd represents the prefill command
var prefillCmd = &cobra.Command{
	Use:   "prefill",
	Short: "Show the label/value pairs a prefill would send to the host form",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := request("GET", "/api/v1/prefill", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Create a remote submission from the resolved values",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := request("POST", "/api/v1/submissions", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func setupResolutionCommands() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(prefillCmd)
	rootCmd.AddCommand(submitCmd)
}
