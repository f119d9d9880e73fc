package service

import (
	"errors"
	"fmt"

	"HomelabMonitorAPI/internal/websocket"
)

// ErrInvalidInput marks request validation failures; handlers map it to 400.
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Broadcaster is the slice of the websocket hub the services push through.
type Broadcaster interface {
	BroadcastAll(msg websocket.Message) int
	PublishHostScoped(hostID string, msg websocket.Message) int
}

const maxNameLength = 255
