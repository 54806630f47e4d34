package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/linguacafe/linguacafe/cmd/linguacafe/internal/build"
	"github.com/linguacafe/linguacafe/cmd/linguacafe/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.String())
		if IsVerbose() {
			fmt.Printf("  go:     %s\n", runtime.Version())
			if path, err := config.Path(); err == nil {
				fmt.Printf("  config: %s\n", path)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
