package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vovakirdan/wirechat-room/internal/metrics"
	"github.com/vovakirdan/wirechat-room/internal/store"
)

// CommandPrefix marks a line as an admin command.
const CommandPrefix = "/"

// MaxMuteMinutes caps /mute durations at one year.
const MaxMuteMinutes = 365 * 24 * 60

const helpText = `available commands:
/mute <username> <minutes> [reason] - mute a user
/unmute <username> - lift a mute
/ban <username> - ban a user and disconnect them
/unban <username> - lift a ban
/users - list online users
/help - show this help`

// Command is a parsed slash command.
type Command struct {
	Name string // lower-case, including the prefix
	Args []string
}

// ParseCommand splits a slash line into its command name and arguments.
// ok is false when text is not a command.
func ParseCommand(text string) (cmd Command, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], CommandPrefix) {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// Outcome is the result of a successful command.
type Outcome struct {
	// Status is announced to the whole room when non-empty.
	Status string
	// Reply is sent privately to the issuer as a system event when non-empty.
	Reply string
	// Disconnect names a user whose sessions must all be closed.
	Disconnect string
}

type commandFunc func(ctx context.Context, issuer Session, args []string) (Outcome, error)

// Interpreter executes admin commands against the moderation store.
type Interpreter struct {
	store    ModerationStore
	registry *Registry
	handlers map[string]commandFunc
}

// NewInterpreter builds an interpreter with the fixed command set.
func NewInterpreter(st ModerationStore, registry *Registry) *Interpreter {
	in := &Interpreter{store: st, registry: registry}
	in.handlers = map[string]commandFunc{
		"/mute":   in.mute,
		"/unmute": in.unmute,
		"/ban":    in.ban,
		"/unban":  in.unban,
		"/help":   in.help,
		"/users":  in.users,
	}
	return in
}

// Execute runs cmd on behalf of issuer. Errors are *CoreError values.
func (in *Interpreter) Execute(ctx context.Context, issuer Session, cmd Command) (Outcome, error) {
	handler, ok := in.handlers[cmd.Name]
	if !ok {
		return Outcome{}, coreErrorf(ErrCodeUnknownCommand, "unknown command: %s", cmd.Name)
	}
	out, err := handler(ctx, issuer, cmd.Args)
	if err == nil {
		metrics.ModerationActions.WithLabelValues(strings.TrimPrefix(cmd.Name, CommandPrefix)).Inc()
	}
	return out, err
}

func (in *Interpreter) lookup(ctx context.Context, username string) (*store.User, error) {
	user, err := in.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, coreErrorf(ErrCodeUserNotFound, "user not found: %s", username)
		}
		return nil, storeError("failed to look up user", err)
	}
	return user, nil
}

func (in *Interpreter) mute(ctx context.Context, issuer Session, args []string) (Outcome, error) {
	if len(args) < 2 {
		return Outcome{}, coreError(ErrCodeBadRequest, "usage: /mute <username> <minutes> [reason]")
	}
	minutes, err := strconv.Atoi(args[1])
	if err != nil || minutes < 1 {
		return Outcome{}, coreErrorf(ErrCodeBadRequest, "invalid duration %q: minutes must be a whole number of at least 1", args[1])
	}
	if minutes > MaxMuteMinutes {
		return Outcome{}, coreErrorf(ErrCodeBadRequest, "invalid duration %q: at most %d minutes", args[1], MaxMuteMinutes)
	}
	reason := strings.Join(args[2:], " ")

	target, err := in.lookup(ctx, args[0])
	if err != nil {
		return Outcome{}, err
	}
	if _, err := in.store.MuteUser(ctx, target.ID, issuer.UserID, time.Duration(minutes)*time.Minute, reason); err != nil {
		return Outcome{}, storeError("failed to mute user", err)
	}

	return Outcome{Status: fmt.Sprintf("%s muted for %d minutes", target.Username, minutes)}, nil
}

func (in *Interpreter) unmute(ctx context.Context, _ Session, args []string) (Outcome, error) {
	if len(args) < 1 {
		return Outcome{}, coreError(ErrCodeBadRequest, "usage: /unmute <username>")
	}
	target, err := in.lookup(ctx, args[0])
	if err != nil {
		return Outcome{}, err
	}
	if err := in.store.UnmuteUser(ctx, target.ID); err != nil {
		return Outcome{}, storeError("failed to unmute user", err)
	}
	return Outcome{Status: fmt.Sprintf("%s has been unmuted", target.Username)}, nil
}

func (in *Interpreter) ban(ctx context.Context, _ Session, args []string) (Outcome, error) {
	if len(args) < 1 {
		return Outcome{}, coreError(ErrCodeBadRequest, "usage: /ban <username>")
	}
	target, err := in.lookup(ctx, args[0])
	if err != nil {
		return Outcome{}, err
	}
	if err := in.store.SetUserStatus(ctx, target.ID, store.UserStatusBanned); err != nil {
		return Outcome{}, storeError("failed to ban user", err)
	}
	return Outcome{
		Status:     fmt.Sprintf("%s has been banned", target.Username),
		Disconnect: target.Username,
	}, nil
}

func (in *Interpreter) unban(ctx context.Context, _ Session, args []string) (Outcome, error) {
	if len(args) < 1 {
		return Outcome{}, coreError(ErrCodeBadRequest, "usage: /unban <username>")
	}
	target, err := in.lookup(ctx, args[0])
	if err != nil {
		return Outcome{}, err
	}
	if err := in.store.SetUserStatus(ctx, target.ID, store.UserStatusActive); err != nil {
		return Outcome{}, storeError("failed to unban user", err)
	}
	return Outcome{Reply: fmt.Sprintf("%s has been unbanned", target.Username)}, nil
}

func (in *Interpreter) help(context.Context, Session, []string) (Outcome, error) {
	return Outcome{Reply: helpText}, nil
}

func (in *Interpreter) users(context.Context, Session, []string) (Outcome, error) {
	members := in.registry.Snapshot()
	lines := make([]string, 0, len(members))
	for _, m := range members {
		if m.IsAdmin {
			lines = append(lines, m.Username+" (admin)")
			continue
		}
		lines = append(lines, m.Username)
	}
	return Outcome{Reply: "online users:\n" + strings.Join(lines, "\n")}, nil
}
