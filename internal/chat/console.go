// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chat connects the assistant to a line-oriented console. Each
// input line is either a question ("alice: What about OTP?") or a reaction
// to a delivered answer ("+<message-id>", "carol -<message-id>").
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pdiddy/scamguard/internal/assistant"
)

// DefaultUser is the identity used for lines that name no user.
const DefaultUser = "console"

// Reaction symbols produced by the "+" and "-" shorthands.
const (
	PositiveSymbol = "✅"
	NegativeSymbol = "❌"
)

// Kind distinguishes input lines.
type Kind int

const (
	Question Kind = iota + 1
	Reaction
)

// Event is one parsed input line.
type Event struct {
	Kind      Kind
	User      string
	Text      string
	MessageID string
	Symbol    string
}

// ErrEmptyLine is returned by ParseLine for blank input.
var ErrEmptyLine = errors.New("empty line")

// ParseLine classifies a console line.
func ParseLine(line string) (Event, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, ErrEmptyLine
	}

	fields := strings.Fields(line)
	switch {
	case len(fields) == 1 && isReaction(fields[0]):
		return reaction(DefaultUser, fields[0]), nil
	case len(fields) == 2 && isReaction(fields[1]) && !strings.Contains(fields[0], ":"):
		return reaction(fields[0], fields[1]), nil
	}

	user, text := DefaultUser, line
	if name, rest, ok := strings.Cut(line, ":"); ok && name != "" && !strings.ContainsAny(name, " \t") {
		user, text = name, strings.TrimSpace(rest)
	}
	if text == "" {
		return Event{}, fmt.Errorf("question from %s is empty", user)
	}
	return Event{Kind: Question, User: user, Text: text}, nil
}

func isReaction(tok string) bool {
	return len(tok) > 1 && (tok[0] == '+' || tok[0] == '-')
}

func reaction(user, tok string) Event {
	symbol := PositiveSymbol
	if tok[0] == '-' {
		symbol = NegativeSymbol
	}
	return Event{Kind: Reaction, User: user, MessageID: tok[1:], Symbol: symbol}
}

// Handler receives parsed events.
type Handler interface {
	Ask(ctx context.Context, user, question string) (assistant.Result, error)
	React(ctx context.Context, messageID, symbol, reactor string) (assistant.Rating, error)
}

// Console implements assistant.Transport over plain streams. Replies go to
// out prefixed with their message ID; log-channel messages go to logOut.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	logOut io.Writer
	logger *slog.Logger
	newID  func() string
}

// NewConsole writes replies to out and log-channel messages to logOut.
func NewConsole(out, logOut io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{out: out, logOut: logOut, logger: logger, newID: uuid.NewString}
}

// Reply prints text for user and returns a fresh message ID.
func (c *Console) Reply(_ context.Context, user, text string) (string, error) {
	id := c.newID()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, "[%s] @%s %s\n", id, user, text); err != nil {
		return "", err
	}
	return id, nil
}

// Log prints text to the log stream.
func (c *Console) Log(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.logOut, "%s\n\n", text)
	return err
}

// Serve reads lines from in and dispatches them to h until in is
// exhausted or ctx is done. Handler failures are logged and do not stop
// the loop.
func (c *Console) Serve(ctx context.Context, in io.Reader, h Handler) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading console input: %w", err)
					}
				default:
				}
				return nil
			}
			c.dispatch(ctx, line, h)
		}
	}
}

func (c *Console) dispatch(ctx context.Context, line string, h Handler) {
	ev, err := ParseLine(line)
	if errors.Is(err, ErrEmptyLine) {
		return
	}
	if err != nil {
		c.logger.Warn("ignoring console line", "error", err)
		return
	}

	switch ev.Kind {
	case Question:
		res, err := h.Ask(ctx, ev.User, ev.Text)
		if err != nil {
			c.logger.Error("ask failed", "user", ev.User, "error", err)
			return
		}
		c.logger.Debug("question handled", "user", ev.User, "outcome", res.Outcome, "message_id", res.MessageID)
	case Reaction:
		rating, err := h.React(ctx, ev.MessageID, ev.Symbol, ev.User)
		if err != nil {
			c.logger.Warn("reaction ignored", "message_id", ev.MessageID, "error", err)
			return
		}
		c.logger.Debug("reaction recorded", "message_id", ev.MessageID, "rating", rating)
	}
}
