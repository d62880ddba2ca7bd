package commands

import "github.com/skovgaard/tunectl/cmd/tunectl/commands/snapshot"

func init() {
	rootCmd.AddCommand(snapshot.Cmd)
}
