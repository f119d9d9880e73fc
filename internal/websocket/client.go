package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"HomelabMonitorAPI/internal/logger"

	"github.com/gorilla/websocket"
)

// Config holds the transport timings.
type Config struct {
	IdleTimeout    time.Duration
	PongTimeout    time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		IdleTimeout:    60 * time.Second,
		PongTimeout:    30 * time.Second,
		WriteWait:      10 * time.Second,
		SendBuffer:     256,
		MaxMessageSize: 4096,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var pingFrame, _ = json.Marshal(Message{Type: TypePing})

// Client binds a gorilla connection to its hub handle.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	c    *Conn
	cfg  Config
	hb   *heartbeat
	log  *logger.Logger
}

// writePump drains the outbound queue and drives the heartbeat.
func (cl *Client) writePump() {
	ticker := time.NewTicker(cl.hb.tickInterval())
	defer func() {
		ticker.Stop()
		cl.hub.Unregister(cl.c)
		cl.conn.Close()
	}()

	for {
		select {
		case <-cl.c.Done():
			cl.conn.SetWriteDeadline(time.Now().Add(cl.cfg.WriteWait))
			cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-cl.c.Send():
			cl.conn.SetWriteDeadline(time.Now().Add(cl.cfg.WriteWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				cl.log.Debug("Write to client %s failed: %v", cl.c.ID(), err)
				return
			}
		case <-ticker.C:
			sendPing, expired := cl.hb.check()
			if expired {
				cl.log.Info("Client %s missed heartbeat, closing", cl.c.ID())
				return
			}
			if !sendPing {
				continue
			}
			cl.conn.SetWriteDeadline(time.Now().Add(cl.cfg.WriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, pingFrame); err != nil {
				return
			}
		}
	}
}

// readPump relays client frames to the hub until the connection fails.
func (cl *Client) readPump() {
	defer func() {
		cl.hub.Unregister(cl.c)
		cl.conn.Close()
	}()

	// Backstop in case the write pump is wedged; the heartbeat normally
	// closes the connection first.
	deadline := cl.cfg.IdleTimeout + cl.cfg.PongTimeout + cl.hb.tickInterval()
	cl.conn.SetReadLimit(cl.cfg.MaxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(deadline))
	cl.conn.SetPongHandler(func(string) error {
		cl.hb.touch()
		return cl.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		msgType, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cl.log.Debug("Client %s read error: %v", cl.c.ID(), err)
			}
			return
		}
		cl.hb.touch()
		cl.conn.SetReadDeadline(time.Now().Add(deadline))
		if msgType != websocket.TextMessage {
			continue
		}
		cl.hub.HandleInbound(cl.c, data)
	}
}

// ServeWs upgrades the request and attaches the connection to the hub.
func ServeWs(hub *Hub, cfg Config, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("WS Upgrade Error: %v", err)
		return
	}

	c := NewConn(cfg.SendBuffer)
	if !hub.Register(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		c:    c,
		cfg:  cfg,
		hb:   newHeartbeat(cfg.IdleTimeout, cfg.PongTimeout, nil),
		log:  log,
	}
	hub.SendToOne(c, ConnectedMessage())

	go client.writePump()
	go client.readPump()
}
