package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateChatID    string
	simulateAsset     string
	simulateCondition string
	simulateThreshold float64
	simulateCurrent   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次价格告警并通过 Telegram 发送",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateThreshold <= 0 || simulateCurrent <= 0 {
			return errors.New("--threshold 与 --current 必须大于 0")
		}

		threshold := decimal.NewFromFloat(simulateThreshold)
		current := decimal.NewFromFloat(simulateCurrent)
		return getApp().SimulateAlert(cmd.Context(), simulateChatID, simulateAsset, simulateCondition, threshold, current)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateChatID, "chat-id", "", "接收告警的 Telegram chat id")
	simulateCmd.Flags().StringVar(&simulateAsset, "asset", "ETH", "资产符号")
	simulateCmd.Flags().StringVar(&simulateCondition, "condition", "above", "触发条件 (above/below)")
	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 0, "阈值 (USD)")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "模拟现价 (USD)")
}
