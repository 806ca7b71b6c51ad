package httpapi

import (
	"sync"
	"time"
)

const (
	EventVisitCreated       = "visit.created"
	EventVisitEntered       = "visit.entered"
	EventVisitExited        = "visit.exited"
	EventVisitReported      = "visit.reported"
	EventVisitReportCleared = "visit.report_cleared"
	EventVisitDeleted       = "visit.deleted"
	EventDirectory          = "directory"
	EventUpdate             = "update"
)

type busEvent struct {
	Type    string    `json:"type"`
	VisitID int64     `json:"visit_id,omitempty"`
	Time    time.Time `json:"time"`
}

type eventBus struct {
	mu   sync.Mutex
	subs map[chan busEvent]struct{}
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[chan busEvent]struct{})}
}

func (b *eventBus) Subscribe() chan busEvent {
	ch := make(chan busEvent, 32)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *eventBus) Unsubscribe(ch chan busEvent) {
	if ch == nil {
		return
	}
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// Publish fans ev out to every subscriber. Slow subscribers miss events
// rather than block the publisher.
func (b *eventBus) Publish(typ string, visitID int64) {
	if typ == "" {
		typ = EventUpdate
	}
	ev := busEvent{Type: typ, VisitID: visitID, Time: time.Now().UTC()}

	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.Unlock()
}
