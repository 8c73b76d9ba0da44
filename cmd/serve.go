package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mezonai/mmn-faucet/chain"
	"github.com/mezonai/mmn-faucet/config"
	"github.com/mezonai/mmn-faucet/faucet"
	"github.com/mezonai/mmn-faucet/logx"
	"github.com/mezonai/mmn-faucet/monitoring"
	"github.com/mezonai/mmn-faucet/ratelimit"
	"github.com/mezonai/mmn-faucet/recaptcha"
	"github.com/mezonai/mmn-faucet/server"
	"github.com/mezonai/mmn-faucet/store"
)

var (
	configPath string
	tuningPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the faucet service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&configPath, "config", "config/faucet.yml", "Path to the faucet config file")
	serveCmd.Flags().StringVar(&tuningPath, "tuning", "", "Path to the optional tuning .ini file")
}

func runServe() error {
	cfg, err := config.LoadFaucetConfig(configPath)
	if err != nil {
		return err
	}

	tuning := config.DefaultTuning()
	if tuningPath != "" {
		tuning, err = config.LoadTuningConfig(tuningPath)
		if err != nil {
			return fmt.Errorf("failed to load tuning config: %w", err)
		}
	}

	monitoring.InitMetrics()

	privKey, err := config.LoadEd25519PrivKey(cfg.Drip.KeyPath)
	if err != nil {
		return fmt.Errorf("failed to load faucet key: %w", err)
	}
	signer, err := chain.NewSigner(privKey)
	if err != nil {
		return err
	}
	logx.Info("CMD", "faucet funding account: ", signer.Address())

	gateway := chain.NewRPCClient(chain.Config{
		Endpoint:       cfg.Chain.RPCEndpoint,
		SubmitTimeout:  time.Duration(cfg.Chain.SubmitTimeoutMs) * time.Millisecond,
		MaxAttempts:    tuning.Retry.MaxAttempts,
		RetryBaseDelay: time.Duration(tuning.Retry.BaseDelayMs) * time.Millisecond,
		RetryMaxDelay:  time.Duration(tuning.Retry.MaxDelayMs) * time.Millisecond,
	})
	defer gateway.Close()

	dripStore, err := store.NewBoltDripStore(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer dripStore.MustClose()

	limiter := ratelimit.NewDripLimiter(&ratelimit.DripLimiterConfig{
		RecipientMax:    cfg.RateLimit.RecipientMax,
		RecipientWindow: time.Duration(cfg.RateLimit.RecipientWindowSec) * time.Second,
		GlobalMax:       cfg.RateLimit.GlobalMax,
		GlobalWindow:    time.Duration(cfg.RateLimit.GlobalWindowSec) * time.Second,
		CleanupInterval: 5 * time.Minute,
	})
	defer limiter.Stop()

	gate := recaptcha.NewGate(cfg.Recaptcha)

	dispatcher := faucet.NewDispatcher(cfg, tuning, gateway, signer, limiter, gate, dripStore)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	httpServer := server.NewServer(cfg.Server.ListenAddr, dispatcher)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	select {
	case <-ctx.Done():
		logx.Info("CMD", "shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logx.Error("CMD", "http shutdown failed: ", err)
	}
	return nil
}
