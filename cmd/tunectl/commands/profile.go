package commands

import "github.com/skovgaard/tunectl/cmd/tunectl/commands/profile"

func init() {
	rootCmd.AddCommand(profile.Cmd)
}
