package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mrtctl",
	Short: "Operator CLI for the trial notification services",
	Long:  "Inspect today's notification logs and run dispatch passes against the configured object store.",
}

func main() {
	var participantFlag string
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect today's notification logs",
	}
	logsCmd.PersistentFlags().StringVarP(&participantFlag, "participant", "p", "", "Only show entries for this participant")
	logsCmd.AddCommand(
		&cobra.Command{
			Use:   "schedule",
			Short: "Print today's schedule log",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runLogs(cmd.Context(), "schedule", participantFlag, os.Stdout)
			},
		},
		&cobra.Command{
			Use:   "sent",
			Short: "Print today's sent log",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runLogs(cmd.Context(), "sent", participantFlag, os.Stdout)
			},
		},
	)
	rootCmd.AddCommand(logsCmd)

	dispatchCmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run a single dispatch pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return runDispatch(cmd.Context(), dryRun, os.Stdout)
		},
	}
	dispatchCmd.Flags().Bool("dry-run", false, "Report what would be sent without sending")
	rootCmd.AddCommand(dispatchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
