package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setupRuntime(nil)
			if err != nil {
				return err
			}
			defer rt.close()

			for _, schema := range rt.tools.Schemas() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", schema.Name, schema.Description)
			}
			return nil
		},
	}
	return cmd
}

func newUsageCmd() *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show token usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setupRuntime(nil)
			if err != nil {
				return err
			}
			defer rt.close()

			var in, out int
			if day != "" {
				in, out, err = rt.usage.Day(day)
			} else {
				in, out, err = rt.usage.Today()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "input tokens:  %d\noutput tokens: %d\n", in, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day to report (YYYY-MM-DD, default today)")
	return cmd
}
