package janitor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/rdysatrio/go-flash-reserve/internal/kafka"
	"github.com/rdysatrio/go-flash-reserve/internal/orders"
	"github.com/rdysatrio/go-flash-reserve/internal/redisx"
)

// Events: consumer utk event checkout. Completed -> refresh cache status
// order; incomplete -> log keras sebagai sinyal rekonsiliasi manual.
type Events struct {
	Redis *redis.Client
	Log   zerolog.Logger
}

// HandleCheckout dipasang sebagai handler consumer.
func (e *Events) HandleCheckout(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup via redis (pakai event_id); key-nya baru ditulis SETELAH
	// handler sukses, supaya gagal di tengah masih bisa di-redeliver
	dkey := fmt.Sprintf(redisx.KeyDedup, "janitor", env.EventID)
	exists, _ := redisx.Exists(ctx, e.Redis, dkey)
	if exists {
		return nil
	}

	switch env.EventType {
	case orders.EventCheckoutCompleted:
		p, err := kafkax.UnwrapPayload[orders.CheckoutCompletedPayload](env.Payload)
		if err != nil {
			return err
		}
		skey := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderID)
		if err := e.Redis.Set(ctx, skey, `{"status":"COMPLETED"}`, redisx.TTLStatusCache).Err(); err != nil {
			return err
		}

	case orders.EventCheckoutIncomplete:
		p, err := kafkax.UnwrapPayload[orders.CheckoutIncompletePayload](env.Payload)
		if err != nil {
			return err
		}
		// tidak ada auto-repair; event-nya jejak audit utk operator
		e.Log.Error().
			Str("order_id", p.OrderID).
			Str("user_id", p.UserID).
			Str("step", p.Step).
			Str("sku", p.SKU).
			Str("reason", p.Reason).
			Msg("incomplete checkout needs reconciliation")
	}

	_ = e.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
