package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigil-cam/vigil/internal/buildinfo"
)

// Command returns a cobra command that prints build information.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), build.String())
			return err
		},
	}
}
