package realtime

import "context"

// Emitter fans a frame out to every connection subscribed to room.
type Emitter interface {
	Emit(ctx context.Context, room string, frame []byte) error
}

var _ Emitter = (*Router)(nil)
