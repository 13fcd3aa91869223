package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/require"

	"github.com/jh9098/gtoapp/internal/campaign"
	"github.com/jh9098/gtoapp/internal/crawl"
	"github.com/jh9098/gtoapp/internal/session"
)

// scriptedRunner lets tests drive the event stream handed to the registry.
type scriptedRunner struct {
	mu   sync.Mutex
	runs []*scriptedRun
}

type scriptedRun struct {
	ctx    context.Context
	events chan crawl.Event
}

func (r *scriptedRunner) Run(ctx context.Context, _ crawl.Params) <-chan crawl.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := &scriptedRun{ctx: ctx, events: make(chan crawl.Event)}
	r.runs = append(r.runs, run)
	return run.events
}

func (r *scriptedRunner) run(t *testing.T, i int) *scriptedRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		n := len(r.runs)
		r.mu.Unlock()
		if n > i {
			r.mu.Lock()
			run := r.runs[i]
			r.mu.Unlock()
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run was not started")
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *scriptedRunner, *session.Registry) {
	t.Helper()
	runner := &scriptedRunner{}
	registry := session.NewRegistry(runner, nil)
	srv := httptest.NewServer(NewServer(registry, time.Minute, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, runner, registry
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetResultsUnknownSession(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/results?session_cookie=nobody")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "not_found", body["status"])
}

func TestGetResultsReturnsBuffers(t *testing.T) {
	t.Parallel()

	srv, runner, registry := newTestServer(t)

	obs := &recordingObserver{}
	registry.Attach("tok", crawl.Params{}, obs)
	run := runner.run(t, 0)
	run.events <- crawl.Event{Kind: crawl.KindHidden, Result: campaign.Result{ID: 1, Line: "hidden-line"}}
	run.events <- crawl.Event{Kind: crawl.KindPublic, Result: campaign.Result{ID: 2, Line: "public-line", Public: true}}

	require.Eventually(t, func() bool {
		buffers, err := registry.Query("tok")
		return err == nil && len(buffers.Hidden) == 1 && len(buffers.Public) == 1
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/api/results?session_cookie=tok")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string   `json:"status"`
		Hidden []string `json:"hidden"`
		Public []string `json:"public"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, []string{"hidden-line"}, body.Hidden)
	require.Equal(t, []string{"public-line"}, body.Public)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []crawl.Event
}

func (o *recordingObserver) Send(evt crawl.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, evt)
	return nil
}

func TestCrawlSocketStreamsEvents(t *testing.T) {
	t.Parallel()

	srv, runner, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/crawl"

	conn, _, _, err := ws.Dial(context.Background(), wsURL)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	request := `{"session_cookie":"tok","selected_days":["20일"]}`
	require.NoError(t, wsutil.WriteClientMessage(conn, ws.OpText, []byte(request)))

	run := runner.run(t, 0)
	run.events <- crawl.Event{Kind: crawl.KindHidden, Result: campaign.Result{ID: 1, Line: "hidden-line"}}

	payload, err := wsutil.ReadServerText(conn)
	require.NoError(t, err)

	var evt wsEvent
	require.NoError(t, json.Unmarshal(payload, &evt))
	require.Equal(t, "hidden", evt.Event)
	require.Equal(t, "hidden-line", evt.Data)
}

func TestCrawlSocketDisconnectCancelsLastObserver(t *testing.T) {
	t.Parallel()

	srv, runner, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/crawl"

	conn, _, _, err := ws.Dial(context.Background(), wsURL)
	require.NoError(t, err)

	require.NoError(t, wsutil.WriteClientMessage(conn, ws.OpText, []byte(`{"session_cookie":"tok"}`)))
	run := runner.run(t, 0)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return run.ctx.Err() != nil
	}, 5*time.Second, 10*time.Millisecond)
}
