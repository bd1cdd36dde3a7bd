package cli

import (
	"github.com/spf13/cobra"

	"github.com/carlos-olivera/data-bs-cripto/internal/app"
)

var analyzeNoNotify bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a single trend-analysis pass over stored samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.AnalyzeOptions{
			Notify: !analyzeNoNotify,
		}
		return getApp().AnalyzeOnce(cmd.Context(), opts)
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeNoNotify, "no-notify", false, "Compute and log verdicts without dispatching alerts")
}
