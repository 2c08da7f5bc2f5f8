package janitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/rdysatrio/go-flash-reserve/internal/kafka"
	"github.com/rdysatrio/go-flash-reserve/internal/orders"
	"github.com/rdysatrio/go-flash-reserve/internal/redisx"
)

func completedMsg(eventID, orderID string) kafkago.Message {
	env := orders.Envelope{
		EventID:       eventID,
		EventType:     orders.EventCheckoutCompleted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test",
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(orders.CheckoutCompletedPayload{
			OrderID: orderID, UserID: "alice", TotalCents: 3000,
		}),
	}
	return kafkago.Message{Key: orders.PartitionKey(orderID), Value: kafkax.MustMarshal(env)}
}

func TestHandleCheckoutCachesStatus(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	e := &Events{Redis: rdb, Log: zerolog.Nop()}
	ctx := context.Background()

	require.NoError(t, e.HandleCheckout(ctx, completedMsg("ev-1", "order-1")))

	got, err := rdb.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatus, "order-1")).Result()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"COMPLETED"}`, got)
}

// Gagal di tengah handler tidak boleh menandai dedup: event yg sama
// harus masih bisa diproses ulang saat redelivery.
func TestHandleCheckoutRetriableAfterFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	e := &Events{Redis: rdb, Log: zerolog.Nop()}
	ctx := context.Background()

	mr.SetError("redis down")
	require.Error(t, e.HandleCheckout(ctx, completedMsg("ev-1", "order-1")))
	mr.SetError("")

	n, err := rdb.Exists(ctx, fmt.Sprintf(redisx.KeyDedup, "janitor", "ev-1")).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	// redelivery setelah redis pulih: status tetap ter-cache
	require.NoError(t, e.HandleCheckout(ctx, completedMsg("ev-1", "order-1")))
	got, err := rdb.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatus, "order-1")).Result()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"COMPLETED"}`, got)
}

func TestHandleCheckoutDedups(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	e := &Events{Redis: rdb, Log: zerolog.Nop()}
	ctx := context.Background()

	require.NoError(t, e.HandleCheckout(ctx, completedMsg("ev-1", "order-1")))

	// hapus cache, redeliver event yg sama: dedup harus menahan
	mr.Del(fmt.Sprintf(redisx.KeyOrderStatus, "order-1"))
	require.NoError(t, e.HandleCheckout(ctx, completedMsg("ev-1", "order-1")))
	_, err := rdb.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatus, "order-1")).Result()
	assert.ErrorIs(t, err, redis.Nil)
}
