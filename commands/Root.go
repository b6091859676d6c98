// Package commands implements the godqn command line interface
package commands

import "github.com/spf13/cobra"

var seed uint64

// GetRootCommand returns the godqn command with all of its subcommands
func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "godqn",
		Short:         "Train DQN agents and serve prioritized replay tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCommand.PersistentFlags().Uint64Var(&seed, "seed", 1,
		"Seed for the environment, network and replay")

	rootCommand.AddCommand(TrainCommand())
	rootCommand.AddCommand(ReplayServerCommand())
	rootCommand.AddCommand(ConfigCommand())
	return rootCommand
}
