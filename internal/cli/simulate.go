package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/carlos-olivera/data-bs-cripto/internal/storage"
)

var (
	simulateField string
	simulateFirst float64
	simulateLast  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次趋势判定并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateFirst <= 0 || simulateLast <= 0 {
			return errors.New("--first 与 --last 必须大于 0")
		}

		return getApp().SimulateAlert(cmd.Context(), simulateField, simulateFirst, simulateLast)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateField, "field", storage.FieldBuyRate, "被模拟的字段")
	simulateCmd.Flags().Float64Var(&simulateFirst, "first", 0, "窗口起点价格")
	simulateCmd.Flags().Float64Var(&simulateLast, "last", 0, "窗口终点价格")
}
