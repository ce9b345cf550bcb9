package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisBackplaneDeliversAcrossRouters(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	newNode := func() (*Router, *RedisBackplane) {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		router := NewRouter(zap.NewNop(), nil)
		bp := NewRedisBackplane(client, "rooms", router, zap.NewNop())
		require.NoError(t, bp.Start(ctx))
		t.Cleanup(func() { _ = bp.Close() })
		return router, bp
	}
	routerA, bpA := newNode()
	routerB, _ := newNode()

	local := NewClient(orgUser(1), 8, 0, 0)
	remote := NewClient(orgUser(1), 8, 0, 0)
	routerA.Register(local)
	routerB.Register(remote)

	require.NoError(t, bpA.Emit(ctx, UserRoom(1), []byte(`{"event":"x"}`)))

	for _, c := range []*Client{local, remote} {
		select {
		case frame := <-c.Frames():
			assert.JSONEq(t, `{"event":"x"}`, string(frame))
		case <-time.After(2 * time.Second):
			t.Fatal("frame not delivered")
		}
	}
}

func TestRedisBackplaneStartTwice(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bp := NewRedisBackplane(client, "rooms", NewRouter(zap.NewNop(), nil), zap.NewNop())
	require.NoError(t, bp.Start(context.Background()))
	assert.Error(t, bp.Start(context.Background()))
	require.NoError(t, bp.Close())
	assert.NoError(t, bp.Close())
}
