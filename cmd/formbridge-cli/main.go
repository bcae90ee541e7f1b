package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	version   = "1.0.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "formbridge-cli",
	Short: "FormBridge Command Line Interface",
	Long: "A CLI for managing FormBridge resources: tabular sources, row selection, " +
		"mapping rules, resolution previews and remote submissions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Lookup("version") != nil && cmd.Flags().Lookup("version").Changed {
			fmt.Printf("formbridge-cli v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envDefault("FORMBRIDGE_SERVER", "http://localhost:8090"), "FormBridge server URL")
	rootCmd.Flags().Bool("version", false, "Show version information and exit")

	setupSourceCommands()
	setupQuestionCommands()
	setupRuleCommands()
	setupResolutionCommands()
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
