package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(logger.Discard())
}

func openConn(t *testing.T, h *Hub, buffer int) *Conn {
	t.Helper()
	c := NewConn(buffer)
	require.True(t, h.Register(c))
	return c
}

// drain returns every frame currently queued on c, decoded.
func drain(t *testing.T, c *Conn) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case frame := <-c.Send():
			var m Message
			require.NoError(t, json.Unmarshal(frame, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestSendToSubscribersReachesOnlySubscribers(t *testing.T) {
	h := newTestHub()
	a := openConn(t, h, 8)
	b := openConn(t, h, 8)
	c := openConn(t, h, 8)

	require.True(t, h.Subscribe(a, "abc"))
	require.True(t, h.Subscribe(b, "abc"))

	n := h.SendToSubscribers("abc", MetricMessage("abc", map[string]interface{}{"percent": 12.5}))
	assert.Equal(t, 2, n)

	assert.Len(t, drain(t, a), 1)
	assert.Len(t, drain(t, b), 1)
	assert.Empty(t, drain(t, c))
}

func TestBroadcastAllReachesEveryOpenConnection(t *testing.T) {
	h := newTestHub()
	conns := []*Conn{openConn(t, h, 4), openConn(t, h, 4), openConn(t, h, 4)}
	h.Subscribe(conns[0], "x")

	assert.Equal(t, 3, h.BroadcastAll(HostStatusMessage("x", models.HostStatusHealthy)))
	for _, c := range conns {
		msgs := drain(t, c)
		require.Len(t, msgs, 1)
		assert.Equal(t, TypeHostStatus, msgs[0].Type)
		assert.Equal(t, "healthy", msgs[0].Status)
	}
}

func TestPublishHostScopedIncludesUnfilteredListeners(t *testing.T) {
	h := newTestHub()
	subscribed := openConn(t, h, 4)
	other := openConn(t, h, 4)
	unfiltered := openConn(t, h, 4)

	h.Subscribe(subscribed, "h1")
	h.Subscribe(other, "h2")

	alert := &models.Alert{ID: "a1", HostID: "h1", Severity: models.SeverityWarning, Message: "m", TriggeredAt: time.Now()}
	h.NotifyAlert(alert)

	got := drain(t, subscribed)
	require.Len(t, got, 1)
	assert.Equal(t, TypeAlert, got[0].Type)
	assert.Len(t, drain(t, unfiltered), 1)
	assert.Empty(t, drain(t, other))
}

func TestFailedSendUnregistersOnlyThatConnection(t *testing.T) {
	h := newTestHub()
	slow := openConn(t, h, 1)
	fast := openConn(t, h, 8)
	h.Subscribe(slow, "abc")
	h.Subscribe(fast, "abc")

	assert.Equal(t, 2, h.SendToSubscribers("abc", MetricMessage("abc", nil)))
	// slow's single slot is now taken.
	assert.Equal(t, 1, h.SendToSubscribers("abc", MetricMessage("abc", nil)))

	assert.Equal(t, StateClosed, slow.State())
	assert.Equal(t, 1, h.ConnectionCount())
	assert.Equal(t, 1, h.SubscriberCount("abc"))
	assert.Empty(t, h.Subscriptions(slow))

	select {
	case <-slow.Done():
	default:
		t.Fatal("dropped connection should be closed")
	}

	assert.Equal(t, 1, h.BroadcastAll(Message{Type: TypePing}))
	assert.Len(t, drain(t, fast), 3)
}

func TestRegisterLifecycle(t *testing.T) {
	h := newTestHub()
	c := NewConn(4)
	assert.Equal(t, StateConnecting, c.State())

	// Not yet open: subscription changes are ignored.
	assert.False(t, h.Subscribe(c, "abc"))

	require.True(t, h.Register(c))
	assert.Equal(t, StateOpen, c.State())
	assert.False(t, h.Register(c))

	require.True(t, h.Subscribe(c, "abc"))
	h.Unregister(c)
	h.Unregister(c)

	assert.Equal(t, StateClosed, c.State())
	assert.Zero(t, h.ConnectionCount())
	assert.Zero(t, h.SubscriberCount("abc"))
	assert.False(t, h.Subscribe(c, "abc"))
	assert.False(t, h.Unsubscribe(c, "abc"))
	assert.False(t, h.SendToOne(c, Message{Type: TypePong}))
}

func TestMessagesBeforeRegisterAreNotDelivered(t *testing.T) {
	h := newTestHub()
	existing := openConn(t, h, 4)
	h.BroadcastAll(Message{Type: TypePing})

	late := openConn(t, h, 4)
	h.BroadcastAll(Message{Type: TypePong})

	assert.Len(t, drain(t, existing), 2)
	msgs := drain(t, late)
	require.Len(t, msgs, 1)
	assert.Equal(t, TypePong, msgs[0].Type)
}

func TestUnsubscribe(t *testing.T) {
	h := newTestHub()
	c := openConn(t, h, 4)
	h.Subscribe(c, "a")
	h.Subscribe(c, "b")

	require.True(t, h.Unsubscribe(c, "a"))
	assert.Zero(t, h.SubscriberCount("a"))
	assert.Equal(t, []string{"b"}, h.Subscriptions(c))

	assert.Zero(t, h.SendToSubscribers("a", Message{Type: TypeMetric}))
}

func TestHandleInbound(t *testing.T) {
	h := newTestHub()
	c := openConn(t, h, 8)

	h.HandleInbound(c, []byte(`{"action": "subscribe", "host_id": "abc"}`))
	h.HandleInbound(c, []byte(`{"action": "ping"}`))
	h.HandleInbound(c, []byte(`{not json`))
	h.HandleInbound(c, []byte(`{"action": "subscribe"}`))
	h.HandleInbound(c, []byte(`{"action": "dance"}`))
	h.HandleInbound(c, []byte(`{"action": "unsubscribe", "host_id": "abc"}`))

	msgs := drain(t, c)
	require.Len(t, msgs, 6)
	assert.Equal(t, Message{Type: TypeSubscribed, HostID: "abc"}, msgs[0])
	assert.Equal(t, Message{Type: TypePong}, msgs[1])
	assert.Equal(t, Message{Type: TypeError, Message: "Invalid JSON"}, msgs[2])
	assert.Equal(t, TypeError, msgs[3].Type)
	assert.Equal(t, TypeError, msgs[4].Type)
	assert.Equal(t, Message{Type: TypeUnsubscribed, HostID: "abc"}, msgs[5])
	assert.Zero(t, h.SubscriberCount("abc"))
}

func TestHubClose(t *testing.T) {
	h := newTestHub()
	a := openConn(t, h, 1)
	b := openConn(t, h, 1)

	h.Close()

	assert.Equal(t, StateClosed, a.State())
	assert.Equal(t, StateClosed, b.State())
	assert.False(t, h.Register(NewConn(1)))
}

func TestConcurrentChurnAndBroadcast(t *testing.T) {
	h := newTestHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewConn(64)
			if !h.Register(c) {
				return
			}
			h.Subscribe(c, "abc")
			go func() {
				for {
					select {
					case <-c.Send():
					case <-c.Done():
						return
					}
				}
			}()
			h.Unsubscribe(c, "abc")
			h.Unregister(c)
		}()
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.SendToSubscribers("abc", Message{Type: TypeMetric})
				h.BroadcastAll(Message{Type: TypePing})
			}
		}()
	}

	wg.Wait()
	assert.Zero(t, h.ConnectionCount())
	assert.Zero(t, h.SubscriberCount("abc"))
}
