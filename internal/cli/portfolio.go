package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	portfolioChain   string
	portfolioAddress string
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "查询单个地址的余额估值",
	RunE: func(cmd *cobra.Command, args []string) error {
		if portfolioChain == "" || portfolioAddress == "" {
			return errors.New("--chain 与 --address 都必须提供")
		}
		return getApp().ShowPortfolio(cmd.Context(), portfolioChain, portfolioAddress)
	},
}

func init() {
	portfolioCmd.Flags().StringVar(&portfolioChain, "chain", "", "链标识 (evm/btc/sol/ton)")
	portfolioCmd.Flags().StringVar(&portfolioAddress, "address", "", "要查询的地址")
}
