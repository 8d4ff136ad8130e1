package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prolink/prolink-go"
)

// realtimeAPI is the change-feed surface: a single websocket carrying
// one phoenix channel per subscribed topic. The socket is dialed
// lazily on the first subscription and closed with the client.
type realtimeAPI struct {
	client *Client

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[int]*subscription
	nextID int
	refSeq int
	closed bool
	done   chan struct{}
}

type subscription struct {
	topic   string
	kinds   map[prolink.ChangeKind]bool
	handler func(prolink.ChangeEvent)
}

// socketMessage is the phoenix frame envelope.
type socketMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

type changePayload struct {
	Record map[string]any `json:"record"`
	Type   string         `json:"type"`
}

func newRealtimeAPI(c *Client) *realtimeAPI {
	return &realtimeAPI{
		client: c,
		subs:   map[int]*subscription{},
	}
}

var _ prolink.RealtimeAPI = (*realtimeAPI)(nil)

// Subscribe registers a handler for row changes on sub.Table. The
// returned unsubscribe leaves the channel when its last consumer is
// gone; it is safe to call more than once.
func (r *realtimeAPI) Subscribe(ctx context.Context, sub prolink.Subscription, handler func(prolink.ChangeEvent)) (func(), error) {
	if sub.Table == "" {
		return nil, fmt.Errorf("supabase: subscription requires a table")
	}

	topic := "realtime:public:" + sub.Table
	if sub.Filter != "" {
		topic += ":" + sub.Filter
	}

	kinds := map[prolink.ChangeKind]bool{}
	for _, k := range sub.Kinds {
		kinds[k] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, prolink.ErrBackendUnavailable
	}

	if r.conn == nil {
		if err := r.dialLocked(ctx); err != nil {
			return nil, err
		}
	}

	if !r.topicJoinedLocked(topic) {
		if err := r.sendLocked(socketMessage{
			Topic:   topic,
			Event:   "phx_join",
			Payload: json.RawMessage(`{}`),
			Ref:     r.nextRefLocked(),
		}); err != nil {
			return nil, wrapTransport(err)
		}
	}

	r.nextID++
	id := r.nextID
	r.subs[id] = &subscription{topic: topic, kinds: kinds, handler: handler}

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(id) })
	}, nil
}

func (r *realtimeAPI) unsubscribe(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return
	}
	delete(r.subs, id)

	if !r.topicJoinedLocked(sub.topic) && r.conn != nil {
		_ = r.sendLocked(socketMessage{
			Topic:   sub.topic,
			Event:   "phx_leave",
			Payload: json.RawMessage(`{}`),
			Ref:     r.nextRefLocked(),
		})
	}
}

func (r *realtimeAPI) topicJoinedLocked(topic string) bool {
	for _, s := range r.subs {
		if s.topic == topic {
			return true
		}
	}
	return false
}

func (r *realtimeAPI) dialLocked(ctx context.Context) error {
	endpoint := r.client.config.baseURL()
	endpoint = strings.Replace(endpoint, "https://", "wss://", 1)
	endpoint = strings.Replace(endpoint, "http://", "ws://", 1)
	endpoint += "/realtime/v1/websocket?apikey=" + url.QueryEscape(r.client.config.AnonKey) + "&vsn=1.0.0"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return wrapTransport(err)
	}

	r.conn = conn
	r.done = make(chan struct{})
	go r.readLoop(conn, r.done)
	go r.heartbeatLoop(conn, r.done)
	return nil
}

func (r *realtimeAPI) sendLocked(msg socketMessage) error {
	return r.conn.WriteJSON(msg)
}

func (r *realtimeAPI) nextRefLocked() string {
	r.refSeq++
	return strconv.Itoa(r.refSeq)
}

func (r *realtimeAPI) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer r.teardown(conn)

	for {
		var msg socketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-done:
			default:
				r.client.logger.Warn("realtime socket closed: %v", err)
			}
			return
		}

		kind := prolink.ChangeKind(msg.Event)
		switch kind {
		case prolink.ChangeInsert, prolink.ChangeUpdate, prolink.ChangeDelete:
		default:
			continue
		}

		var payload changePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			r.client.logger.Warn("realtime payload decode failed: %v", err)
			continue
		}

		event := prolink.ChangeEvent{
			Table:  tableFromTopic(msg.Topic),
			Kind:   kind,
			Record: payload.Record,
		}
		r.dispatch(msg.Topic, event)
	}
}

func (r *realtimeAPI) dispatch(topic string, event prolink.ChangeEvent) {
	r.mu.Lock()
	handlers := make([]func(prolink.ChangeEvent), 0, len(r.subs))
	for _, s := range r.subs {
		if s.topic != topic {
			continue
		}
		if len(s.kinds) > 0 && !s.kinds[event.Kind] {
			continue
		}
		handlers = append(handlers, s.handler)
	}
	r.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

func (r *realtimeAPI) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(r.client.config.heartbeat())
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn != conn {
				r.mu.Unlock()
				return
			}
			err := r.sendLocked(socketMessage{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: json.RawMessage(`{}`),
				Ref:     r.nextRefLocked(),
			})
			r.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// teardown clears the connection so the next Subscribe redials.
func (r *realtimeAPI) teardown(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == conn {
		if r.done != nil {
			select {
			case <-r.done:
			default:
				close(r.done)
			}
		}
		r.conn = nil
		r.done = nil
	}
	_ = conn.Close()
}

func (r *realtimeAPI) close() error {
	r.mu.Lock()
	r.closed = true
	conn := r.conn
	done := r.done
	r.conn = nil
	r.done = nil
	r.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		default:
			close(done)
		}
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// tableFromTopic extracts the table name from realtime:public:<table>
// or realtime:public:<table>:<filter>.
func tableFromTopic(topic string) string {
	parts := strings.Split(topic, ":")
	if len(parts) >= 3 {
		return parts[2]
	}
	return topic
}
