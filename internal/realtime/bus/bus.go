package bus

import (
	"context"

	"github.com/yungbote/coursegate-backend/internal/realtime"
)

// Bus carries SSE messages between API replicas so a message published on
// one replica reaches sessions connected to any other.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
