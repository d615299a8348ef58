// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assistant runs the question and rating flows: it applies the
// clarification protocol around retrieval, asks the language model for an
// answer, records usage, and reports each exchange to the log channel.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/pdiddy/scamguard/internal/conversation"
	"github.com/pdiddy/scamguard/internal/knowledge"
	"github.com/pdiddy/scamguard/internal/llm"
	"github.com/pdiddy/scamguard/internal/usage"
	"github.com/pdiddy/scamguard/pkg/types"
)

// Replies sent to the asker.
const (
	ClarifyPrompt = "I’m not sure I fully understood your question. " +
		"Could you please provide more details or clarify what you mean?"
	NoInformation = "No internal information found."
	Unavailable   = "Sorry, I'm unable to answer right now. Please try again later."
	ErrorReply    = "❌ An error occurred."
)

// Retriever returns the k corpus items nearest to query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]types.Match, error)
}

// Transport delivers replies to users and messages to the operators' log
// channel.
type Transport interface {
	// Reply sends text to user and returns an identifier for the
	// delivered message, used to attribute later reactions.
	Reply(ctx context.Context, user, text string) (messageID string, err error)
	Log(ctx context.Context, text string) error
}

// Outcome classifies how a question was handled.
type Outcome int

const (
	Answered Outcome = iota
	Clarify
	NoInfo
	Unanswerable
	Failed
)

var outcomeNames = [...]string{"answered", "clarify", "no-info", "unanswerable", "failed"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result describes one handled question.
type Result struct {
	Outcome   Outcome
	Question  string
	Clarified bool
	Context   string
	Answer    string
	MessageID string
}

// Config holds the assistant's tunables.
type Config struct {
	TopK               int
	SummarizeThreshold int
}

// Assistant is safe for concurrent use by multiple users.
type Assistant struct {
	cfg       Config
	retriever Retriever
	model     llm.Model
	conv      *conversation.State
	stats     *usage.Aggregator
	transport Transport
	logger    *slog.Logger
}

// New wires an assistant. logger may be nil.
func New(cfg Config, r Retriever, m llm.Model, conv *conversation.State, stats *usage.Aggregator, t Transport, logger *slog.Logger) *Assistant {
	if cfg.TopK <= 0 {
		cfg.TopK = knowledge.DefaultTopK
	}
	if cfg.SummarizeThreshold <= 0 {
		cfg.SummarizeThreshold = llm.DefaultSummarizeThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{cfg: cfg, retriever: r, model: m, conv: conv, stats: stats, transport: t, logger: logger}
}

// Ask handles question from user. A user with a pending clarification has
// it consumed here; the combined question is retrieved once. The returned
// error is non-nil only when the reply itself could not be delivered.
func (a *Assistant) Ask(ctx context.Context, user, question string) (Result, error) {
	effective, clarified := a.conv.Begin(user, question)
	res := Result{Question: effective, Clarified: clarified}
	if clarified {
		a.stats.RecordClarification()
	}

	matches, err := a.retriever.Retrieve(ctx, effective, a.cfg.TopK)
	if err != nil {
		a.logger.Warn("retrieval failed", "user", user, "error", err)
		res.Outcome = Unanswerable
		return res, a.reply(ctx, user, Unavailable, &res)
	}

	if len(matches) == 0 {
		if clarified {
			res.Outcome = NoInfo
			return res, a.reply(ctx, user, NoInformation, &res)
		}
		a.conv.Hold(user, question)
		res.Outcome = Clarify
		return res, a.reply(ctx, user, ClarifyPrompt, &res)
	}

	if !clarified {
		a.stats.RecordAsk(effective)
	}

	res.Context = a.condense(ctx, knowledge.Join(matches))

	answer, err := a.model.Answer(ctx, res.Context, effective)
	if err != nil {
		a.logger.Error("answer failed", "user", user, "error", err)
		res.Outcome = Failed
		return res, a.reply(ctx, user, ErrorReply, &res)
	}
	if answer == "" {
		answer = NoInformation
	}
	res.Answer = answer
	res.Outcome = Answered

	if err := a.reply(ctx, user, answer, &res); err != nil {
		return res, err
	}
	a.conv.RecordAnswer(res.MessageID, conversation.AnswerRecord{
		Question: effective,
		Answer:   answer,
		AskedBy:  user,
	})
	a.log(ctx, fmt.Sprintf("🧠 %s asked: `%s`\n📄 AI used: `%s`\n📬 AI said:\n%s", user, effective, res.Context, answer))
	return res, nil
}

// condense summarizes text that exceeds the configured length. A failed
// summary falls back to the full text.
func (a *Assistant) condense(ctx context.Context, text string) string {
	if utf8.RuneCountInString(text) <= a.cfg.SummarizeThreshold {
		return text
	}
	summary, err := a.model.Summarize(ctx, text)
	if err != nil || summary == "" {
		a.logger.Warn("summarization failed; using full context", "error", err)
		return text
	}
	a.logger.Debug("context summarized", "from", utf8.RuneCountInString(text), "to", utf8.RuneCountInString(summary))
	return summary
}

func (a *Assistant) reply(ctx context.Context, user, text string, res *Result) error {
	id, err := a.transport.Reply(ctx, user, text)
	if err != nil {
		return fmt.Errorf("replying to %s: %w", user, err)
	}
	res.MessageID = id
	return nil
}

func (a *Assistant) log(ctx context.Context, text string) {
	if err := a.transport.Log(ctx, text); err != nil {
		a.logger.Warn("writing to log channel failed", "error", err)
	}
}

// Rating is a reaction's verdict on an answer.
type Rating int

const (
	Unrated Rating = iota
	Positive
	Negative
)

func (r Rating) String() string {
	switch r {
	case Positive:
		return "Positive"
	case Negative:
		return "Negative"
	}
	return "Unrated"
}

// ParseRating maps a reaction symbol to a rating.
func ParseRating(symbol string) Rating {
	switch symbol {
	case "✅":
		return Positive
	case "❌":
		return Negative
	}
	return Unrated
}

// ErrUnknownMessage is returned by React for a message that is not a
// retained answer.
var ErrUnknownMessage = errors.New("unknown answer message")

// React records reactor's rating of the answer delivered as messageID.
// Symbols other than the two rating symbols are ignored and return
// Unrated with a nil error.
func (a *Assistant) React(ctx context.Context, messageID, symbol, reactor string) (Rating, error) {
	rating := ParseRating(symbol)
	if rating == Unrated {
		return Unrated, nil
	}
	rec, ok := a.conv.Answer(messageID)
	if !ok {
		return Unrated, fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
	}
	if rating == Negative {
		a.stats.RecordNegative()
	}
	a.log(ctx, fmt.Sprintf("📝 Answer rating by %s: **%s**\n👤 Asked by %s\n❓ Question: %s\n💬 Answer: %s",
		reactor, rating, rec.AskedBy, rec.Question, rec.Answer))
	return rating, nil
}
