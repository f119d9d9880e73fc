// Package bus carries alert-rule change notifications between API replicas.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"HomelabMonitorAPI/internal/config"
	"HomelabMonitorAPI/internal/logger"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Rule change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionSeeded  = "seeded"
)

type RuleChange struct {
	RuleID string    `json:"rule_id"`
	Action string    `json:"action"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Bus publishes and receives RuleChange events on one subject. Events this
// process published itself are not delivered back to its handler.
type Bus struct {
	conn    *nats.Conn
	subject string
	origin  string
	log     *logger.Logger
	sub     *nats.Subscription
}

func Connect(cfg config.NATSConfig, log *logger.Logger) (*Bus, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("homelab-monitor"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("Connected to NATS at %s", conn.ConnectedUrl())
	return &Bus{
		conn:    conn,
		subject: cfg.RuleChangeTopic,
		origin:  uuid.NewString(),
		log:     log,
	}, nil
}

// PublishRuleChange implements the rule service's change publisher.
func (b *Bus) PublishRuleChange(ctx context.Context, ruleID, action string) error {
	data, err := json.Marshal(RuleChange{
		RuleID: ruleID,
		Action: action,
		Origin: b.origin,
		At:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("failed to publish rule change: %w", err)
	}
	return nil
}

func (b *Bus) SubscribeRuleChanges(handler func(RuleChange)) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		b.handle(msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.subject, err)
	}
	b.sub = sub
	b.log.Info("Subscribed to rule changes on %s", b.subject)
	return nil
}

func (b *Bus) handle(data []byte, handler func(RuleChange)) {
	var evt RuleChange
	if err := json.Unmarshal(data, &evt); err != nil {
		b.log.Warn("Ignoring malformed rule change event: %v", err)
		return
	}
	if evt.Origin == b.origin {
		return
	}
	b.log.Debug("Rule %s %s by replica %s", evt.RuleID, evt.Action, evt.Origin)
	handler(evt)
}

func (b *Bus) IsConnected() bool {
	return b.conn != nil && b.conn.IsConnected()
}

func (b *Bus) Close() {
	if b.conn == nil {
		return
	}
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	_ = b.conn.Drain()
	b.conn.Close()
}
