package commands

import (
	"fmt"
	"io"

	"github.com/samuelfneumann/godqn/agent/dqn"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCommand returns the command which prints the default DQN
// configuration as YAML. The output can be edited and passed back to
// the train command with --config.
func ConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the default agent configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeConfig(cmd.OutOrStdout(), dqn.DefaultConfig())
		},
	}
}

func writeConfig(out io.Writer, c dqn.Config) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("writeConfig: %v", err)
	}
	return enc.Close()
}
