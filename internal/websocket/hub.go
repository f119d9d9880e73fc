package websocket

import (
	"encoding/json"
	"sync"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/metrics"
	"HomelabMonitorAPI/internal/models"
)

// Hub tracks open connections and their per-host subscriptions. Deliveries
// are non-blocking enqueues; a connection whose queue is full is dropped
// without affecting the other recipients.
type Hub struct {
	mu     sync.RWMutex
	conns  map[*Conn]struct{}
	subs   map[string]map[*Conn]struct{}
	closed bool

	log *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		conns: make(map[*Conn]struct{}),
		subs:  make(map[string]map[*Conn]struct{}),
		log:   log,
	}
}

// Register moves c to OPEN and makes it visible to later deliveries.
func (h *Hub) Register(c *Conn) bool {
	h.mu.Lock()
	if h.closed || !c.open() {
		h.mu.Unlock()
		return false
	}
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	h.log.Info("WebSocket client %s connected. Total: %d", c.id, total)
	return true
}

// Unregister removes c from every set and closes it. Safe to call repeatedly.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	_, known := h.conns[c]
	delete(h.conns, c)
	for hostID := range c.subs {
		h.removeSubscriber(hostID, c)
	}
	c.subs = make(map[string]struct{})
	total := len(h.conns)
	h.mu.Unlock()

	c.close()

	if known {
		metrics.WSConnections.Set(float64(total))
		h.log.Info("WebSocket client %s disconnected. Total: %d", c.id, total)
	}
}

// Subscribe adds hostID to c's subscriptions. No-op unless c is OPEN.
func (h *Hub) Subscribe(c *Conn, hostID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok || c.State() != StateOpen {
		return false
	}
	set, ok := h.subs[hostID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.subs[hostID] = set
	}
	set[c] = struct{}{}
	c.subs[hostID] = struct{}{}
	return true
}

func (h *Hub) Unsubscribe(c *Conn, hostID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok || c.State() != StateOpen {
		return false
	}
	h.removeSubscriber(hostID, c)
	delete(c.subs, hostID)
	return true
}

// removeSubscriber requires h.mu held for writing.
func (h *Hub) removeSubscriber(hostID string, c *Conn) {
	set, ok := h.subs[hostID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.subs, hostID)
	}
}

// BroadcastAll delivers msg to every open connection and returns how many
// accepted it.
func (h *Hub) BroadcastAll(msg Message) int {
	h.mu.RLock()
	recipients := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		recipients = append(recipients, c)
	}
	h.mu.RUnlock()

	return h.deliver(recipients, msg)
}

// SendToSubscribers delivers msg only to connections subscribed to hostID.
func (h *Hub) SendToSubscribers(hostID string, msg Message) int {
	h.mu.RLock()
	set := h.subs[hostID]
	recipients := make([]*Conn, 0, len(set))
	for c := range set {
		recipients = append(recipients, c)
	}
	h.mu.RUnlock()

	return h.deliver(recipients, msg)
}

// PublishHostScoped delivers msg to the subscribers of hostID and to every
// connection that has no subscriptions at all.
func (h *Hub) PublishHostScoped(hostID string, msg Message) int {
	h.mu.RLock()
	recipients := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		if len(c.subs) == 0 {
			recipients = append(recipients, c)
			continue
		}
		if _, ok := c.subs[hostID]; ok {
			recipients = append(recipients, c)
		}
	}
	h.mu.RUnlock()

	return h.deliver(recipients, msg)
}

// SendToOne is best effort; a failed send drops the connection.
func (h *Hub) SendToOne(c *Conn, msg Message) bool {
	return h.deliver([]*Conn{c}, msg) == 1
}

// NotifyAlert publishes a persisted alert to the host's audience.
func (h *Hub) NotifyAlert(alert *models.Alert) {
	h.PublishHostScoped(alert.HostID, AlertMessage(alert))
}

func (h *Hub) deliver(recipients []*Conn, msg Message) int {
	if len(recipients) == 0 {
		return 0
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("Failed to encode %s message: %v", msg.Type, err)
		return 0
	}

	delivered := 0
	var failed []*Conn
	for _, c := range recipients {
		if c.enqueue(frame) {
			delivered++
			continue
		}
		failed = append(failed, c)
	}

	metrics.WSMessagesSent.WithLabelValues(msg.Type).Add(float64(delivered))
	for _, c := range failed {
		metrics.WSSendFailures.Inc()
		h.log.Warn("Dropping WebSocket client %s after failed %s send", c.id, msg.Type)
		h.Unregister(c)
	}
	return delivered
}

// HandleInbound applies one client frame and replies to c.
func (h *Hub) HandleInbound(c *Conn, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		h.SendToOne(c, ErrorMessage("Invalid JSON"))
		return
	}

	switch in.Action {
	case ActionSubscribe:
		if in.HostID == "" {
			h.SendToOne(c, ErrorMessage("host_id is required"))
			return
		}
		if h.Subscribe(c, in.HostID) {
			h.SendToOne(c, Message{Type: TypeSubscribed, HostID: in.HostID})
		}
	case ActionUnsubscribe:
		if in.HostID == "" {
			h.SendToOne(c, ErrorMessage("host_id is required"))
			return
		}
		if h.Unsubscribe(c, in.HostID) {
			h.SendToOne(c, Message{Type: TypeUnsubscribed, HostID: in.HostID})
		}
	case ActionPing:
		h.SendToOne(c, Message{Type: TypePong})
	default:
		h.SendToOne(c, ErrorMessage("Unknown action: "+in.Action))
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) SubscriberCount(hostID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[hostID])
}

// Subscriptions returns the hosts c is subscribed to.
func (h *Hub) Subscriptions(c *Conn) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for hostID := range c.subs {
		out = append(out, hostID)
	}
	return out
}

// Close refuses new registrations and closes every open connection.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.Unregister(c)
	}
	h.log.Info("WebSocket hub closed (%d connections dropped)", len(conns))
}
