package cli

import (
	"github.com/spf13/cobra"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Run a single acquisition cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SampleOnce(cmd.Context())
	},
}
