package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/mmn-faucet/cmd"
	"github.com/mezonai/mmn-faucet/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("FAUCET CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
