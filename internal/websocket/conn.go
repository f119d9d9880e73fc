package websocket

import (
	"sync"

	"github.com/google/uuid"
)

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Conn is the hub's handle for one live client. Outbound frames are queued on
// send and written by the transport's write pump.
type Conn struct {
	id   string
	send chan []byte
	done chan struct{}

	mu    sync.Mutex
	state State

	// subs is owned by the hub and guarded by Hub.mu.
	subs map[string]struct{}
}

func NewConn(buffer int) *Conn {
	if buffer < 1 {
		buffer = 1
	}
	return &Conn{
		id:    uuid.NewString(),
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
		state: StateConnecting,
		subs:  make(map[string]struct{}),
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send is the outbound queue drained by the write pump.
func (c *Conn) Send() <-chan []byte {
	return c.send
}

// Done is closed once the connection reaches CLOSED.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting {
		return false
	}
	c.state = StateOpen
	return true
}

// enqueue never blocks. It fails when the connection is not open or its
// buffer is full.
func (c *Conn) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return false
	}
	c.state = StateClosed
	close(c.done)
	return true
}
