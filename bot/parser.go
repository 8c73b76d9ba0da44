package bot

import (
	"strings"
)

const (
	commandPrefix = "!"

	CmdBalance = "balance"
	CmdDrip    = "drip"
)

// Command is a recognized chat command with its arguments.
type Command struct {
	Name string
	Args []string
}

// ParseCommand extracts a faucet command from a chat message body. The second
// return is false for anything that is not addressed to the bot; those
// messages are ignored entirely.
func ParseCommand(body string) (Command, bool) {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, commandPrefix) {
		return Command{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(trimmed, commandPrefix))
	if len(fields) == 0 {
		return Command{}, false
	}

	return Command{
		Name: strings.ToLower(fields[0]),
		Args: fields[1:],
	}, true
}
