// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scamguard/internal/embed"
	"github.com/pdiddy/scamguard/internal/knowledge"
	"github.com/pdiddy/scamguard/internal/usage"
	"github.com/pdiddy/scamguard/pkg/types"
)

type fakeEngine struct {
	snap        *knowledge.Snapshot
	rebuildErr  error
	forced      []bool
	matches     []types.Match
	retrieveErr error
	lastK       int
}

func (e *fakeEngine) Rebuild(_ context.Context, opts knowledge.RebuildOptions) (*knowledge.RebuildResult, error) {
	e.forced = append(e.forced, opts.Force)
	if e.rebuildErr != nil {
		return nil, e.rebuildErr
	}
	return &knowledge.RebuildResult{Snapshot: e.snap, Duration: 1500 * time.Microsecond}, nil
}

func (e *fakeEngine) Retrieve(_ context.Context, _ string, k int) ([]types.Match, error) {
	e.lastK = k
	return e.matches, e.retrieveErr
}

func (e *fakeEngine) State() knowledge.State {
	if e.snap == nil {
		return knowledge.Cold
	}
	return knowledge.Ready
}

func (e *fakeEngine) Snapshot() *knowledge.Snapshot { return e.snap }

func testSnapshot(t *testing.T) *knowledge.Snapshot {
	t.Helper()
	snap, err := knowledge.NewSnapshot("abc123", "test:model",
		[]types.KnowledgeItem{{Position: 0, Content: "Never share your OTP with anyone."}},
		[][]float32{{1, 0}})
	require.NoError(t, err)
	return snap
}

func newTestServer(t *testing.T, e *fakeEngine, stats StatsSource) *httptest.Server {
	t.Helper()
	if stats == nil {
		stats = usage.New(5)
	}
	ts := httptest.NewServer(New(types.AdminConfig{}, e, stats, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response, data any) Response {
	t.Helper()
	defer resp.Body.Close()
	env := Response{Data: data}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestReload(t *testing.T) {
	e := &fakeEngine{snap: testSnapshot(t)}
	ts := newTestServer(t, e, nil)

	c := NewClient(ts.URL)
	res, err := c.Reload(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.Fingerprint)
	assert.Equal(t, 1, res.Items)
	assert.InDelta(t, 1.5, res.DurationMS, 1e-9)
	assert.Equal(t, []bool{true}, e.forced)
}

// slowEngine holds a rebuild open long enough for the client to give up.
type slowEngine struct {
	fakeEngine
	started  chan struct{}
	finished chan error
}

func (e *slowEngine) Rebuild(ctx context.Context, _ knowledge.RebuildOptions) (*knowledge.RebuildResult, error) {
	close(e.started)
	select {
	case <-ctx.Done():
		e.finished <- ctx.Err()
		return nil, ctx.Err()
	case <-time.After(300 * time.Millisecond):
	}
	e.finished <- nil
	return &knowledge.RebuildResult{Snapshot: e.snap}, nil
}

func TestReloadSurvivesClientCancel(t *testing.T) {
	e := &slowEngine{
		fakeEngine: fakeEngine{snap: testSnapshot(t)},
		started:    make(chan struct{}),
		finished:   make(chan error, 1),
	}
	ts := httptest.NewServer(New(types.AdminConfig{}, e, usage.New(5), nil).Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := NewClient(ts.URL).Reload(ctx, false)
		errc <- err
	}()

	<-e.started
	cancel()
	require.Error(t, <-errc)

	select {
	case err := <-e.finished:
		assert.NoError(t, err, "rebuild must not see the request cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("rebuild did not finish")
	}
}

type sleepyProvider struct{ delay time.Duration }

func (p sleepyProvider) ModelID() string { return "test:sleepy" }

func (p sleepyProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.delay):
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestReloadCompletesAfterClientTimeout(t *testing.T) {
	dir := t.TempDir()
	corpusPath := filepath.Join(dir, "knowledge.txt")
	require.NoError(t, os.WriteFile(corpusPath, []byte("Never share your OTP.\nBanks never ask for PINs.\n"), 0o644))

	engine := knowledge.NewEngine(knowledge.Config{CorpusPath: corpusPath, Concurrency: 1},
		sleepyProvider{delay: 150 * time.Millisecond},
		knowledge.NewStore(filepath.Join(dir, "cache.db")), nil)
	ts := httptest.NewServer(New(types.AdminConfig{}, engine, usage.New(5), nil).Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewClient(ts.URL).Reload(ctx, true)
	require.Error(t, err)

	assert.Eventually(t, func() bool { return engine.State() == knowledge.Ready },
		5*time.Second, 20*time.Millisecond)
	require.NotNil(t, engine.Snapshot())
	assert.Equal(t, 2, engine.Snapshot().Size())
}

func TestReloadFailure(t *testing.T) {
	e := &fakeEngine{rebuildErr: errors.New("corpus unavailable")}
	ts := newTestServer(t, e, nil)

	_, err := NewClient(ts.URL).Reload(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus unavailable")
}

func TestReloadRequiresPost(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, nil)
	resp, err := http.Get(ts.URL + "/reload")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	t.Run("cold", func(t *testing.T) {
		ts := newTestServer(t, &fakeEngine{}, nil)
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		var h Health
		decode(t, resp, &h)
		assert.Equal(t, "cold", h.State)

		got, err := NewClient(ts.URL).Health(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "cold", got.State)
	})

	t.Run("ready", func(t *testing.T) {
		ts := newTestServer(t, &fakeEngine{snap: testSnapshot(t)}, nil)
		got, err := NewClient(strings.TrimPrefix(ts.URL, "http://")).Health(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ready", got.State)
		assert.Equal(t, 1, got.Items)
		assert.Equal(t, "test:model", got.Model)
	})
}

func TestRetrieve(t *testing.T) {
	e := &fakeEngine{matches: []types.Match{{
		KnowledgeItem: types.KnowledgeItem{Position: 1, Content: "Never share your OTP with anyone."},
	}}}
	ts := newTestServer(t, e, nil)

	resp, err := http.Get(ts.URL + "/retrieve?q=otp&k=1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var matches []types.Match
	env := decode(t, resp, &matches)
	assert.True(t, env.Success)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Position)
	assert.Equal(t, 1, e.lastK)
}

func TestRetrieveErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{"missing q", "", nil, http.StatusBadRequest},
		{"bad k", "q=x&k=abc", nil, http.StatusBadRequest},
		{"embedding failure", "q=x", &embed.Error{Position: -1, Err: errors.New("down")}, http.StatusBadGateway},
		{"other failure", "q=x", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeEngine{retrieveErr: tt.err}, nil)
			resp, err := http.Get(ts.URL + "/retrieve?" + tt.query)
			require.NoError(t, err)
			env := decode(t, resp, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestRetrieveEmptyIsArray(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, nil)
	resp, err := http.Get(ts.URL + "/retrieve?q=anything")
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Equal(t, "[]", string(raw["data"]))
}

func TestReport(t *testing.T) {
	stats := usage.New(5)
	stats.RecordAsk("What is OTP?")
	stats.RecordNegative()
	ts := newTestServer(t, &fakeEngine{}, stats)

	got, err := NewClient(ts.URL).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got.AskCount)
	assert.Equal(t, 1, got.NegativeRatings)

	resp, err := http.Get(ts.URL + "/report?format=text")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

	assert.Equal(t, 1, stats.Stats().AskCount, "report must not reset counters")
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, nil)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/report", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost", resp.Header.Get("Access-Control-Allow-Origin"))
}
