package services

import (
	"context"
	"fmt"

	"github.com/yungbote/coursegate-backend/internal/observability"
	"github.com/yungbote/coursegate-backend/internal/realtime"
	"github.com/yungbote/coursegate-backend/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage) error
}

// HubEmitter broadcasts on the in-process hub. Used when no bus is configured.
type HubEmitter struct{ Hub *realtime.SSEHub }

func (e *HubEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) error {
	if e == nil || e.Hub == nil {
		return fmt.Errorf("sse hub not configured")
	}
	n := e.Hub.Broadcast(msg)
	observability.Current().ObserveSSE(string(msg.Event), n)
	return nil
}

// RedisEmitter publishes on the bus; every replica's forwarder delivers to
// its own hub.
type RedisEmitter struct{ Bus bus.Bus }

func (e *RedisEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) error {
	if e == nil || e.Bus == nil {
		return fmt.Errorf("sse bus not configured")
	}
	return e.Bus.Publish(ctx, msg)
}
