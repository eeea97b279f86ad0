package cmd

import (
	"fmt"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	return taskCmd("test", "Run unit tests", "tests", test.Test)
}

func LintCmd() *cobra.Command {
	return taskCmd("lint", "Run linting", "linting", test.Lint)
}

// IntegrationTestCmd runs the tests that need a sensor on a real bus.
func IntegrationTestCmd() *cobra.Command {
	return taskCmd("integration-test", "Run integration testing against attached hardware", "integration testing", test.Integ)
}

func taskCmd(use, short, task string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(); err != nil {
				return fmt.Errorf("failed to run %s: %w", task, err)
			}
			return nil
		},
	}
}
