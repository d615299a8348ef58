// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package usage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndReset(t *testing.T) {
	a := New(0)
	a.RecordAsk("What is OTP?")
	a.RecordClarification()
	a.RecordNegative()

	s := a.Flush()
	assert.Equal(t, 1, s.AskCount)
	assert.Equal(t, 1, s.ClarificationCount)
	assert.Equal(t, 1, s.NegativeRatings)
	assert.Equal(t, []QuestionCount{{Question: "What is OTP?", Count: 1}}, s.TopQuestions)

	after := a.Stats()
	assert.Zero(t, after.AskCount)
	assert.Zero(t, after.ClarificationCount)
	assert.Zero(t, after.NegativeRatings)
	assert.Empty(t, after.TopQuestions)
}

func TestStatsDoesNotReset(t *testing.T) {
	a := New(5)
	a.RecordAsk("q")
	a.Stats()
	assert.Equal(t, 1, a.Stats().AskCount)
}

func TestTopQuestionsOrdering(t *testing.T) {
	a := New(3)
	for _, q := range []string{"b", "a", "c", "a", "d", "c", "a", "e"} {
		a.RecordAsk(q)
	}

	s := a.Stats()
	assert.Equal(t, 8, s.AskCount)
	assert.Equal(t, []QuestionCount{
		{Question: "a", Count: 3},
		{Question: "c", Count: 2},
		{Question: "b", Count: 1},
	}, s.TopQuestions)
}

func TestReport(t *testing.T) {
	tests := []struct {
		name  string
		stats Stats
		want  []string
	}{
		{
			name:  "empty period",
			stats: Stats{},
			want: []string{
				"Total /ask commands: 0",
				"Clarifying questions asked: 0",
				"Negative answer ratings: 0",
				"No questions asked today.",
			},
		},
		{
			name: "with questions",
			stats: Stats{
				AskCount:           3,
				ClarificationCount: 1,
				NegativeRatings:    2,
				TopQuestions:       []QuestionCount{{"What is OTP?", 2}, {"Is this email real?", 1}},
			},
			want: []string{
				"Total /ask commands: 3",
				"Clarifying questions asked: 1",
				"Negative answer ratings: 2",
				"• `What is OTP?` (2 times)",
				"• `Is this email real?` (1 times)",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Report(tt.stats)
			assert.True(t, strings.HasPrefix(r, "📊 **Bot Usage Report (Daily)** 📊\n"))
			for _, line := range tt.want {
				assert.Contains(t, r, line)
			}
			if len(tt.stats.TopQuestions) > 0 {
				assert.NotContains(t, r, "No questions asked today.")
			}
		})
	}
}

func TestNextBoundary(t *testing.T) {
	tests := []struct {
		now      time.Time
		interval time.Duration
		want     time.Time
	}{
		{time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC), 24 * time.Hour, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 24 * time.Hour, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 4, 23, 59, 59, 0, time.FixedZone("EST", -5*3600)), 24 * time.Hour, time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC), time.Hour, time.Date(2026, 3, 4, 16, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC), 0, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.now.Format(time.RFC3339), tt.interval), func(t *testing.T) {
			assert.True(t, tt.want.Equal(NextBoundary(tt.now, tt.interval)), "got %s", NextBoundary(tt.now, tt.interval))
		})
	}
}

func TestRunEmitsAndResets(t *testing.T) {
	a := New(5)
	a.RecordAsk("What is OTP?")

	var (
		mu      sync.Mutex
		reports []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx, 20*time.Millisecond, func(r string) {
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
		})
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, reports[0], "`What is OTP?` (1 times)")
	assert.Contains(t, reports[1], "No questions asked today.")
}

func TestConcurrentRecording(t *testing.T) {
	a := New(5)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.RecordAsk("q")
			a.RecordClarification()
			a.RecordNegative()
		}()
	}
	wg.Wait()

	s := a.Stats()
	assert.Equal(t, 50, s.AskCount)
	assert.Equal(t, 50, s.ClarificationCount)
	assert.Equal(t, 50, s.NegativeRatings)
	assert.Equal(t, 50, s.TopQuestions[0].Count)
}
