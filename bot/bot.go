package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/mezonai/mmn-faucet/errors"
	"github.com/mezonai/mmn-faucet/faucet"
	"github.com/mezonai/mmn-faucet/logx"
	"github.com/mezonai/mmn-faucet/types"
)

// Message is one chat-room message as delivered by the chat collaborator.
type Message struct {
	Sender string
	Body   string
}

// ChatClient is the external chat-protocol collaborator. Login, room join
// and the wire protocol live behind it.
type ChatClient interface {
	// ReadMessage blocks for the next room message.
	ReadMessage(ctx context.Context) (Message, error)
	// SendMessage posts a reply into the room.
	SendMessage(ctx context.Context, body string) error
}

const usageHint = "Usage: !balance | !drip <address>"

// Bot consumes room messages and answers faucet commands.
type Bot struct {
	client       ChatClient
	dispatcher   *faucet.Dispatcher
	replyTimeout time.Duration
}

// New creates a bot on top of a connected chat client. replyTimeout bounds
// how long a drip command waits for the submission result; zero means the
// default of two minutes.
func New(client ChatClient, dispatcher *faucet.Dispatcher, replyTimeout time.Duration) *Bot {
	if replyTimeout <= 0 {
		replyTimeout = 2 * time.Minute
	}
	return &Bot{
		client:       client,
		dispatcher:   dispatcher,
		replyTimeout: replyTimeout,
	}
}

// Run reads messages until ctx is done. Each drip command is handled in its
// own goroutine so a slow submission never blocks the read loop.
func (b *Bot) Run(ctx context.Context) error {
	logx.Info("BOT", "chat listener started")
	for {
		msg, err := b.client.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("chat read failed: %w", err)
		}

		cmd, ok := ParseCommand(msg.Body)
		if !ok {
			continue
		}

		switch cmd.Name {
		case CmdBalance:
			go b.handleBalance(ctx)
		case CmdDrip:
			if len(cmd.Args) != 1 {
				b.reply(ctx, usageHint)
				continue
			}
			go b.handleDrip(ctx, msg.Sender, cmd.Args[0])
		default:
			b.reply(ctx, usageHint)
		}
	}
}

func (b *Bot) handleBalance(ctx context.Context) {
	balance, err := b.dispatcher.Balance(ctx)
	if err != nil {
		logx.Error("BOT", "balance query failed: ", err)
		b.reply(ctx, "The faucet could not check its balance. Please try again later.")
		return
	}
	b.reply(ctx, fmt.Sprintf("The faucet has %s %ss remaining.", balance.Dec(), b.dispatcher.Unit()))
}

func (b *Bot) handleDrip(ctx context.Context, sender, address string) {
	req, err := b.dispatcher.Request(ctx, address, types.SourceChat, "")
	if err != nil {
		b.reply(ctx, rejectionReply(err))
		return
	}

	awaitCtx, cancel := context.WithTimeout(ctx, b.replyTimeout)
	defer cancel()
	res, err := b.dispatcher.Await(awaitCtx, req)
	if err != nil {
		b.reply(ctx, rejectionReply(err))
		return
	}

	b.reply(ctx, fmt.Sprintf(
		"Sent %s %s %ss. Extrinsic hash: %s",
		sender, b.dispatcher.Amount().Dec(), b.dispatcher.Unit(), res.TxHash,
	))
}

func (b *Bot) reply(ctx context.Context, body string) {
	if err := b.client.SendMessage(ctx, body); err != nil {
		logx.Error("BOT", "failed to send reply: ", err)
	}
}

// rejectionReply maps a faucet error onto room-friendly wording.
func rejectionReply(err error) string {
	if errors.Indeterminate(err) {
		// Never tell the user funds were not sent; the transfer may still
		// land after the deadline.
		return "The transfer was submitted but confirmation is still pending. It may yet arrive."
	}
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidAddress:
		return "That doesn't look like a valid address."
	case errors.ErrCodeRateLimited:
		return "You have reached your drip limit. Please try again later."
	case errors.ErrCodeBackpressure:
		return "The faucet is busy right now. Please try again later."
	default:
		return "The faucet could not send funds. Please try again later."
	}
}
