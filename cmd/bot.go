package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mezonai/mmn-faucet/bot"
	"github.com/mezonai/mmn-faucet/chain"
	"github.com/mezonai/mmn-faucet/config"
	"github.com/mezonai/mmn-faucet/faucet"
	"github.com/mezonai/mmn-faucet/logx"
	"github.com/mezonai/mmn-faucet/monitoring"
	"github.com/mezonai/mmn-faucet/ratelimit"
	"github.com/mezonai/mmn-faucet/recaptcha"
	"github.com/mezonai/mmn-faucet/store"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the faucet bot against the local console",
	Long: "Runs the drip dispatcher with the chat front-end attached to stdin/stdout. " +
		"Deployments with a real chat room inject their own ChatClient instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot()
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
	botCmd.Flags().StringVar(&configPath, "config", "config/faucet.yml", "Path to the faucet config file")
}

// consoleChatClient adapts stdin/stdout to the ChatClient interface for
// local operation and smoke testing.
type consoleChatClient struct {
	scanner *bufio.Scanner
}

func (c *consoleChatClient) ReadMessage(ctx context.Context) (bot.Message, error) {
	lines := make(chan string, 1)
	go func() {
		if c.scanner.Scan() {
			lines <- c.scanner.Text()
		}
		close(lines)
	}()

	select {
	case line, ok := <-lines:
		if !ok {
			return bot.Message{}, fmt.Errorf("console input closed")
		}
		return bot.Message{Sender: "console", Body: strings.TrimSpace(line)}, nil
	case <-ctx.Done():
		return bot.Message{}, ctx.Err()
	}
}

func (c *consoleChatClient) SendMessage(_ context.Context, body string) error {
	_, err := fmt.Fprintln(os.Stdout, body)
	return err
}

func runBot() error {
	cfg, err := config.LoadFaucetConfig(configPath)
	if err != nil {
		return err
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

	gateway := chain.NewRPCClient(chain.Config{
		Endpoint:      cfg.Chain.RPCEndpoint,
		SubmitTimeout: time.Duration(cfg.Chain.SubmitTimeoutMs) * time.Millisecond,
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

	dispatcher := faucet.NewDispatcher(cfg, nil, gateway, signer, limiter, recaptcha.NewGate(cfg.Recaptcha), dripStore)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	client := &consoleChatClient{scanner: bufio.NewScanner(os.Stdin)}
	replyTimeout := time.Duration(cfg.Bot.ReplyTimeoutSec) * time.Second

	logx.Info("CMD", "console bot ready, funding account ", signer.Address())
	return bot.New(client, dispatcher, replyTimeout).Run(ctx)
}
