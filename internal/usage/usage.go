// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package usage counts asks, clarifications and negative ratings over a
// reporting period and renders the periodic usage report.
package usage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTopQuestions is the number of questions listed in a report.
const DefaultTopQuestions = 5

// QuestionCount is one row of the frequency table.
type QuestionCount struct {
	Question string `json:"question" yaml:"question"`
	Count    int    `json:"count" yaml:"count"`
}

// Stats is a point-in-time copy of the counters.
type Stats struct {
	AskCount           int             `json:"ask_count" yaml:"ask_count"`
	ClarificationCount int             `json:"clarification_count" yaml:"clarification_count"`
	NegativeRatings    int             `json:"negative_ratings" yaml:"negative_ratings"`
	TopQuestions       []QuestionCount `json:"top_questions" yaml:"top_questions"`
	Since              time.Time       `json:"since" yaml:"since"`
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu    sync.Mutex
	top   int
	now   func() time.Time
	since time.Time

	asks           int
	clarifications int
	negatives      int
	freq           map[string]int
	order          map[string]int
}

// New returns an aggregator whose reports list the top n questions.
func New(n int) *Aggregator {
	if n <= 0 {
		n = DefaultTopQuestions
	}
	a := &Aggregator{top: n, now: time.Now}
	a.reset()
	return a
}

func (a *Aggregator) reset() {
	a.asks, a.clarifications, a.negatives = 0, 0, 0
	a.freq = make(map[string]int)
	a.order = make(map[string]int)
	a.since = a.now().UTC()
}

// RecordAsk counts a successful first-turn question.
func (a *Aggregator) RecordAsk(question string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.asks++
	if _, seen := a.order[question]; !seen {
		a.order[question] = len(a.order)
	}
	a.freq[question]++
}

// RecordClarification counts a retrieval made with a combined question.
func (a *Aggregator) RecordClarification() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clarifications++
}

// RecordNegative counts a negative answer rating.
func (a *Aggregator) RecordNegative() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.negatives++
}

// Stats returns the current counters without resetting them.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats()
}

// Flush returns the current counters and resets them to zero.
func (a *Aggregator) Flush() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats()
	a.reset()
	return s
}

func (a *Aggregator) stats() Stats {
	rows := make([]QuestionCount, 0, len(a.freq))
	for q, n := range a.freq {
		rows = append(rows, QuestionCount{Question: q, Count: n})
	}
	// Most frequent first; ties keep first-asked order.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return a.order[rows[i].Question] < a.order[rows[j].Question]
	})
	if len(rows) > a.top {
		rows = rows[:a.top]
	}
	return Stats{
		AskCount:           a.asks,
		ClarificationCount: a.clarifications,
		NegativeRatings:    a.negatives,
		TopQuestions:       rows,
		Since:              a.since,
	}
}

// Report renders s as the daily usage message.
func Report(s Stats) string {
	var b strings.Builder
	b.WriteString("📊 **Bot Usage Report (Daily)** 📊\n")
	fmt.Fprintf(&b, "Total /ask commands: %d\n", s.AskCount)
	fmt.Fprintf(&b, "Clarifying questions asked: %d\n", s.ClarificationCount)
	fmt.Fprintf(&b, "Negative answer ratings: %d\n\n", s.NegativeRatings)
	b.WriteString("**Top Questions:**\n")
	if len(s.TopQuestions) == 0 {
		b.WriteString("No questions asked today.\n")
		return b.String()
	}
	for _, q := range s.TopQuestions {
		fmt.Fprintf(&b, "• `%s` (%d times)\n", q.Question, q.Count)
	}
	return b.String()
}

// NextBoundary returns the first instant after now that is a whole
// multiple of interval since the zero time. For a 24h interval that is the
// next UTC midnight.
func NextBoundary(now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return now.UTC().Truncate(interval).Add(interval)
}

// Run emits a report at every interval boundary and resets the counters,
// until ctx is done.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration, emit func(report string)) {
	for {
		wait := time.Until(NextBoundary(a.now(), interval))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			emit(Report(a.Flush()))
		}
	}
}
