// Package crawl drives the campaign evaluator across an ID range, producing
// an ordered, cancellable stream of classification events.
package crawl

import "github.com/jh9098/gtoapp/internal/campaign"

// Kind denotes the type of event produced by an orchestration run.
type Kind string

// Supported event kinds.
const (
	KindHidden Kind = "hidden"
	KindPublic Kind = "public"
	KindError  Kind = "error"
	KindDone   Kind = "done"
)

// Messages surfaced to observers for run-level outcomes.
const (
	MsgDirectoryUnavailable = "공개 캠페인 정보를 가져오지 못했습니다."
	MsgManualRangeRequired  = "수동 범위 사용 시 start_id, end_id는 필수입니다."
	MsgDone                 = "크롤링 완료"
)

// Event is a single tagged value produced by a run. Hidden and public events
// carry the classified Result; error and done events carry Message.
type Event struct {
	Kind    Kind
	Result  campaign.Result
	Message string
}

// Data returns the observer-facing payload text for the event.
func (e Event) Data() string {
	switch e.Kind {
	case KindHidden, KindPublic:
		return e.Result.Line
	default:
		return e.Message
	}
}

// ResultEvent wraps a classified campaign into a hidden or public event.
func ResultEvent(res campaign.Result) Event {
	kind := KindHidden
	if res.Public {
		kind = KindPublic
	}
	return Event{Kind: kind, Result: res}
}

// ErrorEvent builds a run-terminating error event.
func ErrorEvent(msg string) Event {
	return Event{Kind: KindError, Message: msg}
}

// DoneEvent marks the normal end of a run.
func DoneEvent() Event {
	return Event{Kind: KindDone, Message: MsgDone}
}
