package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmueller/silkconv/internal/version"
)

func newVersionCmd() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if long {
				fmt.Fprintln(cmd.OutOrStdout(), version.Describe())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "silkconv v%s\n", version.Resolve())
			return nil
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Include commit, build date and Go runtime")
	return cmd
}
