package main

import (
	"github.com/spf13/cobra"
)

// questionsCmd represents the questions command
var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the question catalog",
}

var listQuestionsCmd = &cobra.Command{
	Use:   "list",
	Short: "List the loaded questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := request("GET", "/api/v1/questions", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var refreshQuestionsCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload the question catalog from the remote form",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := request("POST", "/api/v1/questions/refresh", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func setupQuestionCommands() {
	questionsCmd.AddCommand(listQuestionsCmd)
	questionsCmd.AddCommand(refreshQuestionsCmd)
	rootCmd.AddCommand(questionsCmd)
}
