package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mezonai/mmn-faucet/logx"
)

var rootCmd = &cobra.Command{
	Use:   "mmn-faucet",
	Short: "MMN testnet faucet",
	Long:  "Dispenses testnet tokens to user addresses through a chat bot and an HTTP API.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
