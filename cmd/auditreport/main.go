package main

import (
	"os"

	"github.com/spf13/cobra"
)

var logDir string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "auditreport",
		Short:         "Read the AndyCoin audit log",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&logDir, "log-dir", "logs", "directory holding audit.YYYY-MM-DD.jsonl files")

	root.AddCommand(&cobra.Command{
		Use:   "user-commands <user_id>",
		Short: "List all commands executed by a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserCommands,
	})
	root.AddCommand(&cobra.Command{
		Use:   "user-balances <user_id>",
		Short: "List all balance changes for a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserBalances,
	})
	root.AddCommand(&cobra.Command{
		Use:   "balance-summary",
		Short: "Show a summary of all balance changes",
		Args:  cobra.NoArgs,
		RunE:  runBalanceSummary,
	})
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
