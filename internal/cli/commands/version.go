package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagraph/pkg/catalog"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display schemagraph version, build and catalog support information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schemagraph v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Built with %s for %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Catalogs: %s\n", strings.Join(catalog.List(), ", "))
		},
	}
}
