// Package session owns per-session crawl state: connected observers,
// buffered results, cross-run deduplication, and the single orchestration
// task whose lifetime is tied to observer presence.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/jh9098/gtoapp/internal/campaign"
	"github.com/jh9098/gtoapp/internal/crawl"
	"github.com/jh9098/gtoapp/internal/metrics"
)

// ErrNotFound is returned by Query for a session identity that has never
// been seen.
var ErrNotFound = errors.New("session: unknown session")

// Observer receives replayed history and live events for a session.
// Implementations must be comparable, since Detach removes by identity.
type Observer interface {
	Send(evt crawl.Event) error
}

// Runner starts an orchestration run and returns its event stream. It is
// satisfied by *crawl.Orchestrator.
type Runner interface {
	Run(ctx context.Context, p crawl.Params) <-chan crawl.Event
}

// Buffers is a snapshot of a session's accumulated results.
type Buffers struct {
	Hidden []string
	Public []string
}

// Registry is the concurrency-safe session registry. Sessions are keyed by
// an opaque identity token and retained for the process lifetime.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*state
	runner   Runner
	logger   *zap.Logger
}

// state holds everything owned by one session. Its mutex serializes the two
// actors that race on it: the relay loop and the attach/detach path.
type state struct {
	mu        sync.Mutex
	observers []Observer
	hidden    []string
	public    []string
	seen      map[campaign.ID]struct{}
	task      *task
}

// task is the handle for one orchestration run.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegistry constructs a Registry backed by the given runner.
func NewRegistry(runner Runner, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*state),
		runner:   runner,
		logger:   logger,
	}
}

// Attach registers an observer under the session identity, creating the
// session state if absent. The observer synchronously receives the full
// hidden buffer, then the full public buffer, each in append order, before
// any live event. If no orchestration task is running for the session, one
// is started with the given parameters.
func (r *Registry) Attach(identity string, params crawl.Params, obs Observer) {
	st := r.stateFor(identity)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.observers = append(st.observers, obs)
	metrics.ObserverConnected()

	for _, line := range st.hidden {
		r.send(obs, crawl.Event{Kind: crawl.KindHidden, Result: campaign.Result{Line: line}})
	}
	for _, line := range st.public {
		r.send(obs, crawl.Event{Kind: crawl.KindPublic, Result: campaign.Result{Line: line, Public: true}})
	}

	if st.task == nil {
		r.startTask(identity, st, params)
	}
}

// Detach removes the observer from the session. When the observer list
// empties, the running orchestration task (if any) is canceled and its
// handle cleared so a future Attach starts a fresh run.
func (r *Registry) Detach(identity string, obs Observer) {
	r.mu.Lock()
	st, ok := r.sessions[identity]
	r.mu.Unlock()
	if !ok {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	for i, existing := range st.observers {
		if existing == obs {
			st.observers = append(st.observers[:i], st.observers[i+1:]...)
			metrics.ObserverDisconnected()
			break
		}
	}

	if len(st.observers) == 0 && st.task != nil {
		t := st.task
		st.task = nil
		t.cancel()
		r.logger.Info("crawl canceled, last observer left", zap.String("session", identity))
	}
}

// Query returns the session's buffered results without requiring a live
// connection.
func (r *Registry) Query(identity string) (Buffers, error) {
	r.mu.Lock()
	st, ok := r.sessions[identity]
	r.mu.Unlock()
	if !ok {
		return Buffers{}, ErrNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return Buffers{
		Hidden: append([]string(nil), st.hidden...),
		Public: append([]string(nil), st.public...),
	}, nil
}

func (r *Registry) stateFor(identity string) *state {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[identity]
	if !ok {
		st = &state{seen: make(map[campaign.ID]struct{})}
		r.sessions[identity] = st
		metrics.SessionCreated()
	}
	return st
}

// startTask launches the orchestration run. Caller holds st.mu.
func (r *Registry) startTask(identity string, st *state, params crawl.Params) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}
	st.task = t
	metrics.CrawlStarted()
	r.logger.Info("crawl started", zap.String("session", identity))

	events := r.runner.Run(ctx, params)
	go r.relay(identity, st, t, events)
}

// relay consumes one run's event stream and fans it out. It is the only
// writer to the buffers and seen set while the run lives.
func (r *Registry) relay(identity string, st *state, t *task, events <-chan crawl.Event) {
	defer close(t.done)
	for evt := range events {
		r.deliver(st, evt)
	}

	st.mu.Lock()
	if st.task == t {
		st.task = nil
	}
	st.mu.Unlock()
	metrics.CrawlFinished()
	r.logger.Info("crawl finished", zap.String("session", identity))
}

// deliver dedups, buffers, and fans out a single event. Hidden and public
// events carrying an already-seen campaign ID are dropped entirely; done and
// error events are forwarded but never buffered.
func (r *Registry) deliver(st *state, evt crawl.Event) {
	st.mu.Lock()
	defer st.mu.Unlock()

	switch evt.Kind {
	case crawl.KindHidden, crawl.KindPublic:
		if _, dup := st.seen[evt.Result.ID]; dup {
			return
		}
		st.seen[evt.Result.ID] = struct{}{}
		if evt.Kind == crawl.KindHidden {
			st.hidden = append(st.hidden, evt.Result.Line)
		} else {
			st.public = append(st.public, evt.Result.Line)
		}
	case crawl.KindError, crawl.KindDone:
	}

	metrics.RecordBroadcast(string(evt.Kind))
	for _, obs := range st.observers {
		r.send(obs, evt)
	}
}

// send delivers one event to one observer. A failure is logged and dropped;
// it never affects other observers or the run.
func (r *Registry) send(obs Observer, evt crawl.Event) {
	if err := obs.Send(evt); err != nil {
		metrics.RecordSendFailure()
		r.logger.Warn("observer send failed", zap.String("kind", string(evt.Kind)), zap.Error(err))
	}
}
