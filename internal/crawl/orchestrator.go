package crawl

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jh9098/gtoapp/internal/campaign"
)

// Params configures one orchestration run.
type Params struct {
	// Identity is the opaque session credential attached to every fetch.
	Identity string
	// Filters narrows which campaigns are accepted.
	Filters campaign.Filters
	// UseFullRange walks min..max of the resolved directory set. When false,
	// StartID and EndID must both be set.
	UseFullRange bool
	StartID      *campaign.ID
	EndID        *campaign.ID
	// ExcludeIDs are skipped without fetching.
	ExcludeIDs map[campaign.ID]struct{}
}

// Orchestrator produces the event stream for a crawl over an ID range.
type Orchestrator struct {
	resolver  *campaign.Resolver
	evaluator *campaign.Evaluator
	prefetch  int
	logger    *zap.Logger
}

// New constructs an Orchestrator. prefetch bounds how many per-ID fetches may
// be in flight at once.
func New(resolver *campaign.Resolver, evaluator *campaign.Evaluator, prefetch int, logger *zap.Logger) *Orchestrator {
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		resolver:  resolver,
		evaluator: evaluator,
		prefetch:  prefetch,
		logger:    logger,
	}
}

// Run starts a crawl and returns its event channel. The channel is closed
// after the terminal done or error event, or as soon as ctx is canceled.
// Events within a run are emitted in increasing campaign ID order; excluded
// campaigns produce nothing.
func (o *Orchestrator) Run(ctx context.Context, p Params) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("crawl run panicked", zap.Any("panic", r))
				o.emit(ctx, out, ErrorEvent("crawl failed unexpectedly"))
			}
		}()
		o.run(ctx, p, out)
	}()
	return out
}

func (o *Orchestrator) run(ctx context.Context, p Params, out chan<- Event) {
	dir, err := o.resolver.Resolve(ctx, p.Identity)
	if err != nil {
		o.logger.Warn("directory resolution failed", zap.Error(err))
		o.emit(ctx, out, ErrorEvent(MsgDirectoryUnavailable))
		return
	}

	var startID, endID campaign.ID
	if p.UseFullRange {
		startID, endID = dir.Bounds()
	} else {
		if p.StartID == nil || p.EndID == nil {
			o.emit(ctx, out, ErrorEvent(MsgManualRangeRequired))
			return
		}
		startID, endID = *p.StartID, *p.EndID
	}

	o.logger.Info("crawl range resolved",
		zap.Int("start_id", int(startID)),
		zap.Int("end_id", int(endID)),
		zap.Int("directory_size", len(dir)))

	// Evaluations run on a bounded pool while emission stays in strict ID
	// order: each ID gets a single-slot channel queued in order, and the
	// consumer drains the queue sequentially.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.prefetch)
	slots := make(chan chan evalOutcome, o.prefetch)

	go func() {
		defer close(slots)
		for id := startID; id <= endID; id++ {
			if _, skip := p.ExcludeIDs[id]; skip {
				continue
			}
			slot := make(chan evalOutcome, 1)
			select {
			case slots <- slot:
			case <-gctx.Done():
				return
			}
			id := id
			g.Go(func() error {
				res, ok := o.evaluator.Evaluate(gctx, id, p.Identity, dir, p.Filters)
				slot <- evalOutcome{result: res, ok: ok}
				return nil
			})
		}
	}()

	for slot := range slots {
		var outcome evalOutcome
		select {
		case outcome = <-slot:
		case <-ctx.Done():
			// Canceled mid-fetch: the in-flight evaluations finish on their
			// own and their results are discarded.
			return
		}
		if !outcome.ok {
			continue
		}
		if !o.emit(ctx, out, ResultEvent(outcome.result)) {
			return
		}
	}

	// A canceled run ends without a terminal event.
	if ctx.Err() != nil {
		return
	}
	o.emit(ctx, out, DoneEvent())
}

// emit sends evt unless ctx is canceled first. It reports whether the event
// was delivered.
func (o *Orchestrator) emit(ctx context.Context, out chan<- Event, evt Event) bool {
	select {
	case out <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

type evalOutcome struct {
	result campaign.Result
	ok     bool
}
