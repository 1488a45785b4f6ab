package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2lu3/tetsumon-dayori/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Print(version.Describe("worker"))
	},
}
