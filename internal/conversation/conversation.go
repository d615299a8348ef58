// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package conversation keeps the per-user state behind the two-turn
// clarification protocol and the records needed to attribute reactions to
// delivered answers.
package conversation

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/patrickmn/go-cache"

	"github.com/pdiddy/scamguard/pkg/types"
)

// Defaults applied when the configuration leaves a field at zero.
const (
	DefaultClarificationTTL = 30 * time.Minute
	DefaultAnswerCacheSize  = 1024
)

// AnswerRecord describes a delivered answer so that a later reaction can be
// logged against the original question and asker.
type AnswerRecord struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	AskedBy  string `json:"asked_by" yaml:"asked_by"`
}

// State holds pending clarifications, which expire after a TTL, and answer
// records, which are evicted least-recently-used beyond a fixed size.
type State struct {
	mu      sync.Mutex
	pending *cache.Cache
	answers *lru.Cache[string, AnswerRecord]
}

// New builds conversation state from cfg. A negative ClarificationTTL
// disables expiry.
func New(cfg types.ConversationConfig) (*State, error) {
	ttl := cfg.ClarificationTTL
	cleanup := ttl
	switch {
	case ttl == 0:
		ttl, cleanup = DefaultClarificationTTL, DefaultClarificationTTL
	case ttl < 0:
		ttl, cleanup = cache.NoExpiration, 0
	}

	size := cfg.AnswerCacheSize
	if size <= 0 {
		size = DefaultAnswerCacheSize
	}
	answers, err := lru.New[string, AnswerRecord](size)
	if err != nil {
		return nil, fmt.Errorf("creating answer cache: %w", err)
	}

	return &State{
		pending: cache.New(ttl, cleanup),
		answers: answers,
	}, nil
}

// Begin starts handling a question from user. If a clarification is
// pending for user it is consumed, and the returned text is the original
// question followed by a space and the new one. The pending entry is gone
// after Begin returns whether or not the caller's retrieval succeeds.
func (s *State) Begin(user, question string) (effective string, clarified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.pending.Get(user)
	if !ok {
		return question, false
	}
	s.pending.Delete(user)
	return v.(string) + " " + question, true
}

// Hold parks question as user's pending clarification, replacing any
// earlier one.
func (s *State) Hold(user, question string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.SetDefault(user, question)
}

// Pending returns user's outstanding question, if any.
func (s *State) Pending(user string) (string, bool) {
	v, ok := s.pending.Get(user)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// PendingCount returns the number of unexpired pending clarifications.
func (s *State) PendingCount() int { return s.pending.ItemCount() }

// RecordAnswer remembers the answer delivered as messageID.
func (s *State) RecordAnswer(messageID string, rec AnswerRecord) {
	s.answers.Add(messageID, rec)
}

// Answer looks up a delivered answer by message ID.
func (s *State) Answer(messageID string) (AnswerRecord, bool) {
	return s.answers.Get(messageID)
}

// AnswerCount returns the number of answer records retained.
func (s *State) AnswerCount() int { return s.answers.Len() }
