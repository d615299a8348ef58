// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scamguard/internal/assistant"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Event
	}{
		{"alice: What about OTP?", Event{Kind: Question, User: "alice", Text: "What about OTP?"}},
		{"  What about OTP?  ", Event{Kind: Question, User: DefaultUser, Text: "What about OTP?"}},
		{"Is this legit: a prize email?", Event{Kind: Question, User: DefaultUser, Text: "Is this legit: a prize email?"}},
		{"+abc-123", Event{Kind: Reaction, User: DefaultUser, MessageID: "abc-123", Symbol: PositiveSymbol}},
		{"-abc-123", Event{Kind: Reaction, User: DefaultUser, MessageID: "abc-123", Symbol: NegativeSymbol}},
		{"carol -m1", Event{Kind: Reaction, User: "carol", MessageID: "m1", Symbol: NegativeSymbol}},
		{"alice: +1", Event{Kind: Question, User: "alice", Text: "+1"}},
		{"-", Event{Kind: Question, User: DefaultUser, Text: "-"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	_, err := ParseLine("   ")
	assert.ErrorIs(t, err, ErrEmptyLine)

	_, err = ParseLine("alice:   ")
	assert.Error(t, err)
}

func TestConsoleReplyAndLog(t *testing.T) {
	var out, logOut bytes.Buffer
	c := NewConsole(&out, &logOut, nil)
	c.newID = func() string { return "fixed-id" }

	id, err := c.Reply(context.Background(), "alice", "Never share it.")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)
	assert.Equal(t, "[fixed-id] @alice Never share it.\n", out.String())

	require.NoError(t, c.Log(context.Background(), "rating"))
	assert.Equal(t, "rating\n\n", logOut.String())
}

func TestConsoleReplyIDsAreUnique(t *testing.T) {
	c := NewConsole(&bytes.Buffer{}, &bytes.Buffer{}, nil)
	a, err := c.Reply(context.Background(), "u", "x")
	require.NoError(t, err)
	b, err := c.Reply(context.Background(), "u", "y")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

type recordingHandler struct {
	asks   []string
	reacts []string
}

func (h *recordingHandler) Ask(_ context.Context, user, question string) (assistant.Result, error) {
	h.asks = append(h.asks, user+"|"+question)
	if question == "fail" {
		return assistant.Result{}, errors.New("boom")
	}
	return assistant.Result{Outcome: assistant.Answered}, nil
}

func (h *recordingHandler) React(_ context.Context, messageID, symbol, reactor string) (assistant.Rating, error) {
	h.reacts = append(h.reacts, reactor+"|"+messageID+"|"+symbol)
	return assistant.ParseRating(symbol), nil
}

func TestServeDispatches(t *testing.T) {
	input := strings.Join([]string{
		"alice: What about OTP?",
		"",
		"fail",
		"bob +m1",
		"-m2",
		"alice: again",
	}, "\n")

	h := &recordingHandler{}
	c := NewConsole(&bytes.Buffer{}, &bytes.Buffer{}, nil)
	require.NoError(t, c.Serve(context.Background(), strings.NewReader(input), h))

	assert.Equal(t, []string{"alice|What about OTP?", "console|fail", "alice|again"}, h.asks)
	assert.Equal(t, []string{"bob|m1|✅", "console|m2|❌"}, h.reacts)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewConsole(&bytes.Buffer{}, &bytes.Buffer{}, nil)
	// A reader that never yields keeps the scanner blocked.
	r, w := io.Pipe()
	defer w.Close()
	assert.NoError(t, c.Serve(ctx, r, &recordingHandler{}))
}
