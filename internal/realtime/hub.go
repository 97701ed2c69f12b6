package realtime

import (
	"encoding/json"

	"github.com/ripplehq/ripple-backend/pkg/logger"
	"go.uber.org/zap"
)

type subscription struct {
	client *Client
	topic  string
}

type publication struct {
	topic string
	data  []byte
}

// Hub is the process-local pub/sub bus. A single run-loop goroutine owns
// every map, so events published to one topic reach each subscriber's send
// buffer in publish order without further locking.
type Hub struct {
	register    chan *Client
	unregister  chan *Client
	subscribeCh chan subscription
	unsubCh     chan subscription
	publishCh   chan publication
	done        chan struct{}
	stopped     chan struct{}

	// owned by Run
	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribeCh: make(chan subscription),
		unsubCh:     make(chan subscription),
		publishCh:   make(chan publication, 256),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		clients:     make(map[*Client]struct{}),
		topics:      make(map[string]map[*Client]struct{}),
	}
}

// Run is the hub's event loop. Call it in a goroutine at startup.
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			logger.L().Debug("realtime: client connected",
				zap.Int("user_id", client.userID),
				zap.Int("total", len(h.clients)))

		case client := <-h.unregister:
			h.drop(client)

		case sub := <-h.subscribeCh:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			set, ok := h.topics[sub.topic]
			if !ok {
				set = make(map[*Client]struct{})
				h.topics[sub.topic] = set
			}
			set[sub.client] = struct{}{}
			sub.client.topics[sub.topic] = struct{}{}

		case sub := <-h.unsubCh:
			if set, ok := h.topics[sub.topic]; ok {
				delete(set, sub.client)
				if len(set) == 0 {
					delete(h.topics, sub.topic)
				}
			}
			delete(sub.client.topics, sub.topic)

		case pub := <-h.publishCh:
			for client := range h.topics[pub.topic] {
				select {
				case client.send <- pub.data:
				default:
					// Send buffer full: the client is too slow to keep the
					// ordering contract, drop it and let it reconcile on
					// reconnect.
					h.drop(client)
				}
			}

		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

// drop must only be called from the Run goroutine.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for topic := range client.topics {
		if set, ok := h.topics[topic]; ok {
			delete(set, client)
			if len(set) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	close(client.send)
	logger.L().Debug("realtime: client disconnected",
		zap.Int("user_id", client.userID),
		zap.Int("total", len(h.clients)))
}

// Publish implements Bus. Events for a disconnected subscriber are dropped;
// reconciliation on reconnect is the recovery path, not redelivery.
func (h *Hub) Publish(topic string, event *Event) {
	if event == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.L().Error("realtime: marshal event", zap.Error(err))
		return
	}
	select {
	case h.publishCh <- publication{topic: topic, data: data}:
	case <-h.done:
	}
}

// Subscribe registers interest; authorization happens before this call.
func (h *Hub) Subscribe(client *Client, topic string) {
	select {
	case h.subscribeCh <- subscription{client: client, topic: topic}:
	case <-h.done:
	}
}

func (h *Hub) Unsubscribe(client *Client, topic string) {
	select {
	case h.unsubCh <- subscription{client: client, topic: topic}:
	case <-h.done:
	}
}

// Stop disconnects everyone and stops the run loop.
func (h *Hub) Stop() {
	close(h.done)
	<-h.stopped
}
