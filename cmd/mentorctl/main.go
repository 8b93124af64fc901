// Package main provides mentorctl, a command-line client for the Mentor Match
// realtime server.
//
// Mint a development token:
//
//	mentorctl token --id 7 --name Ada --role mentor
//
// Watch every event, optionally joining a session:
//
//	mentorctl watch --token $TOKEN --session 42
//
// Send one event:
//
//	mentorctl send activity --token $TOKEN --session 42 --type note "hello"
//	mentorctl send typing --token $TOKEN --session 42
//	mentorctl send presence --token $TOKEN --status away
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mentormatch/internal/pkg/logx"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "mentorctl",
		Short:         "Command-line client for the Mentor Match realtime server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logx.InitGlobalLogger(false, level)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log connection lifecycle details")

	root.AddCommand(
		buildTokenCmd(),
		buildWatchCmd(),
		buildSendCmd(),
	)
	return root
}
