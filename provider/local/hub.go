package local

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prolink/prolink-go"
)

// hub is the in-process change feed: every write on the data surface
// is published to the subscribers whose table, kinds and filter match.
type hub struct {
	mu     sync.Mutex
	subs   map[int]*hubSubscriber
	nextID int
}

type hubSubscriber struct {
	table   string
	kinds   map[prolink.ChangeKind]bool
	filters map[string]string
	handler func(prolink.ChangeEvent)
}

func newHub() *hub {
	return &hub{subs: map[int]*hubSubscriber{}}
}

var _ prolink.RealtimeAPI = (*hub)(nil)

func (h *hub) Subscribe(ctx context.Context, sub prolink.Subscription, handler func(prolink.ChangeEvent)) (func(), error) {
	if sub.Table == "" {
		return nil, fmt.Errorf("local: subscription requires a table")
	}

	kinds := map[prolink.ChangeKind]bool{}
	for _, k := range sub.Kinds {
		kinds[k] = true
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = &hubSubscriber{
		table:   sub.Table,
		kinds:   kinds,
		filters: parseFilter(sub.Filter),
		handler: handler,
	}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			unsubscribe()
		}()
	}

	var once sync.Once
	return func() { once.Do(unsubscribe) }, nil
}

// publish fans the event out asynchronously so writers never block on
// slow consumers.
func (h *hub) publish(event prolink.ChangeEvent) {
	h.mu.Lock()
	handlers := make([]func(prolink.ChangeEvent), 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	h.mu.Unlock()

	for _, handler := range handlers {
		go handler(event)
	}
}

func (s *hubSubscriber) matches(event prolink.ChangeEvent) bool {
	if s.table != event.Table {
		return false
	}
	if len(s.kinds) > 0 && !s.kinds[event.Kind] {
		return false
	}
	for col, want := range s.filters {
		got, ok := event.Record[col]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != want {
			return false
		}
	}
	return true
}

// parseFilter reads the hosted service's column=eq.value grammar.
func parseFilter(filter string) map[string]string {
	out := map[string]string{}
	if filter == "" {
		return out
	}
	for _, clause := range strings.Split(filter, "&") {
		col, rest, ok := strings.Cut(clause, "=")
		if !ok {
			continue
		}
		val, ok := strings.CutPrefix(rest, "eq.")
		if !ok {
			continue
		}
		out[col] = val
	}
	return out
}
