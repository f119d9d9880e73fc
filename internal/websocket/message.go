package websocket

import (
	"time"

	"HomelabMonitorAPI/internal/models"
)

// Outbound message types.
const (
	TypeConnected     = "connected"
	TypeSubscribed    = "subscribed"
	TypeUnsubscribed  = "unsubscribed"
	TypeMetric        = "metric"
	TypeAlert         = "alert"
	TypeHostStatus    = "host_status"
	TypeClusterStatus = "cluster_status"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeError         = "error"
)

// Inbound actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// Message is the JSON envelope of every outbound frame.
type Message struct {
	Type      string      `json:"type"`
	HostID    string      `json:"host_id,omitempty"`
	ClusterID string      `json:"cluster_id,omitempty"`
	Status    string      `json:"status,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Inbound is a client request.
type Inbound struct {
	Action string `json:"action"`
	HostID string `json:"host_id,omitempty"`
}

// AlertData is the alert summary carried by alert messages.
type AlertData struct {
	ID          string    `json:"id"`
	HostID      string    `json:"host_id"`
	Severity    string    `json:"severity"`
	Message     string    `json:"message"`
	TriggeredAt time.Time `json:"triggered_at"`
}

func ConnectedMessage() Message {
	return Message{Type: TypeConnected, Message: "Connected to HomeLab Monitor WebSocket"}
}

func MetricMessage(hostID string, data interface{}) Message {
	return Message{Type: TypeMetric, HostID: hostID, Data: data}
}

func AlertMessage(a *models.Alert) Message {
	return Message{
		Type: TypeAlert,
		Data: AlertData{
			ID:          a.ID,
			HostID:      a.HostID,
			Severity:    a.Severity,
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt,
		},
	}
}

func HostStatusMessage(hostID, status string) Message {
	return Message{Type: TypeHostStatus, HostID: hostID, Status: status}
}

func ClusterStatusMessage(clusterID string, data interface{}) Message {
	return Message{Type: TypeClusterStatus, ClusterID: clusterID, Data: data}
}

func ErrorMessage(text string) Message {
	return Message{Type: TypeError, Message: text}
}
