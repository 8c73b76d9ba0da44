package bot

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/mmn-faucet/chain"
	"github.com/mezonai/mmn-faucet/common"
	"github.com/mezonai/mmn-faucet/config"
	"github.com/mezonai/mmn-faucet/faucet"
	"github.com/mezonai/mmn-faucet/ratelimit"
	"github.com/mezonai/mmn-faucet/recaptcha"
	"github.com/mezonai/mmn-faucet/types"
)

// scriptedChat feeds the bot a fixed set of messages and collects replies.
type scriptedChat struct {
	mu      sync.Mutex
	inbox   chan Message
	replies []string
	replyCh chan string
}

type fakeGateway struct {
	mu        sync.Mutex
	balance   *uint256.Int
	submitted int
}

func (g *fakeGateway) GetBalance(_ context.Context, _ string) (*uint256.Int, error) {
	return g.balance.Clone(), nil
}

func (g *fakeGateway) GetAccountNonce(_ context.Context, _ string) (uint64, error) {
	return 0, nil
}

func (g *fakeGateway) SubmitTransfer(_ context.Context, tx *chain.SignedTransfer) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitted++
	return fmt.Sprintf("0xdeadbeef%02d", tx.Tx.Nonce), nil
}

func (g *fakeGateway) AwaitInclusion(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

type noopStore struct{}

func (noopStore) Put(*types.SubmissionRecord) error { return nil }
func (noopStore) Get(string) (*types.SubmissionRecord, error) {
	return nil, nil
}
func (noopStore) GetByTxHash(string) (*types.SubmissionRecord, error) { return nil, nil }
func (noopStore) List(int) ([]*types.SubmissionRecord, error)        { return nil, nil }
func (noopStore) MustClose()                                         {}

func newScriptedChat(bodies ...Message) *scriptedChat {
	c := &scriptedChat{
		inbox:   make(chan Message, len(bodies)),
		replyCh: make(chan string, 16),
	}
	for _, m := range bodies {
		c.inbox <- m
	}
	return c
}

func (c *scriptedChat) ReadMessage(ctx context.Context) (Message, error) {
	select {
	case m := <-c.inbox:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (c *scriptedChat) SendMessage(_ context.Context, body string) error {
	c.mu.Lock()
	c.replies = append(c.replies, body)
	c.mu.Unlock()
	c.replyCh <- body
	return nil
}

func (c *scriptedChat) nextReply(t *testing.T) string {
	t.Helper()
	select {
	case r := <-c.replyCh:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for bot reply")
		return ""
	}
}

func newBotTestDispatcher(t *testing.T, gw *fakeGateway) *faucet.Dispatcher {
	t.Helper()
	cfg := &config.FaucetConfig{
		Chain:     config.ChainConfig{RPCEndpoint: "stub", SubmitTimeoutMs: 500, ConfirmTimeoutMs: 500},
		Drip:      config.DripConfig{Amount: "10", Unit: "UNIT"},
		Recaptcha: config.RecaptchaConfig{TestMode: true, BypassToken: "token"},
	}
	limiter := ratelimit.NewDripLimiter(&ratelimit.DripLimiterConfig{
		RecipientMax:    1,
		RecipientWindow: time.Hour,
		GlobalMax:       100,
		GlobalWindow:    time.Hour,
		CleanupInterval: time.Minute,
	})
	signer, err := chain.NewSigner(ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)))
	require.NoError(t, err)

	d := faucet.NewDispatcher(cfg, nil, gw, signer, limiter, recaptcha.NewGate(cfg.Recaptcha), noopStore{})
	d.Start(context.Background())
	t.Cleanup(func() {
		d.Stop()
		limiter.Stop()
	})
	return d
}

func runBot(t *testing.T, b *Bot) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func testRecipient() string {
	var pub [32]byte
	pub[0] = 7
	return common.EncodeBytesToBase58(pub[:])
}

func TestBalanceCommandReply(t *testing.T) {
	gw := &fakeGateway{balance: uint256.NewInt(10000)}
	chat := newScriptedChat(Message{Sender: "@user:localhost", Body: "!balance"})
	b := New(chat, newBotTestDispatcher(t, gw), time.Second)
	runBot(t, b)

	require.Equal(t, "The faucet has 10000 UNITs remaining.", chat.nextReply(t))
}

func TestDripCommandReply(t *testing.T) {
	gw := &fakeGateway{balance: uint256.NewInt(10000)}
	chat := newScriptedChat(Message{Sender: "@user:localhost", Body: "!drip " + testRecipient()})
	b := New(chat, newBotTestDispatcher(t, gw), time.Second)
	runBot(t, b)

	reply := chat.nextReply(t)
	require.Contains(t, reply, "Sent @user:localhost 10 UNITs.")
	require.Contains(t, reply, "Extrinsic hash: 0xdeadbeef")
	require.Equal(t, 1, gw.submitted)
}

func TestDripCommandRateLimited(t *testing.T) {
	gw := &fakeGateway{balance: uint256.NewInt(10000)}
	addr := testRecipient()
	chat := newScriptedChat(Message{Sender: "@user:localhost", Body: "!drip " + addr})
	b := New(chat, newBotTestDispatcher(t, gw), time.Second)
	runBot(t, b)

	// drips are handled concurrently, so the second command goes in only
	// after the first reply to pin the order
	first := chat.nextReply(t)
	require.Contains(t, first, "Sent @user:localhost")

	chat.inbox <- Message{Sender: "@user:localhost", Body: "!drip " + addr}
	second := chat.nextReply(t)
	require.Equal(t, "You have reached your drip limit. Please try again later.", second)
}

func TestDripCommandInvalidAddress(t *testing.T) {
	gw := &fakeGateway{balance: uint256.NewInt(10000)}
	chat := newScriptedChat(Message{Sender: "@user:localhost", Body: "!drip not-an-address"})
	b := New(chat, newBotTestDispatcher(t, gw), time.Second)
	runBot(t, b)

	require.Equal(t, "That doesn't look like a valid address.", chat.nextReply(t))
}

func TestMalformedDripGetsUsageHint(t *testing.T) {
	gw := &fakeGateway{balance: uint256.NewInt(10000)}
	chat := newScriptedChat(Message{Sender: "@user:localhost", Body: "!drip"})
	b := New(chat, newBotTestDispatcher(t, gw), time.Second)
	runBot(t, b)

	require.Equal(t, usageHint, chat.nextReply(t))
}

func TestUnknownCommandGetsUsageHint(t *testing.T) {
	gw := &fakeGateway{balance: uint256.NewInt(10000)}
	chat := newScriptedChat(Message{Sender: "@user:localhost", Body: "!unknown"})
	b := New(chat, newBotTestDispatcher(t, gw), time.Second)
	runBot(t, b)

	require.Equal(t, usageHint, chat.nextReply(t))
}

func TestPlainChatterIgnored(t *testing.T) {
	gw := &fakeGateway{balance: uint256.NewInt(10000)}
	chat := newScriptedChat(
		Message{Sender: "@user:localhost", Body: "hello everyone"},
		Message{Sender: "@user:localhost", Body: "!balance"},
	)
	b := New(chat, newBotTestDispatcher(t, gw), time.Second)
	runBot(t, b)

	// only the command draws a reply
	require.True(t, strings.HasPrefix(chat.nextReply(t), "The faucet has"))
	chat.mu.Lock()
	defer chat.mu.Unlock()
	require.Len(t, chat.replies, 1)
}
