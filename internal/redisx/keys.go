package redisx

import "time"

const (
	// Per-SKU hold quantities: hash hold:q:{sku} -> field userID, value qty.
	// Hash tag {sku} supaya pasangan key-nya se-slot (cluster-safe utk Lua).
	KeyHoldQty = "hold:q:{%s}"

	// Per-SKU expiry clock: zset hold:exp:{sku} -> member userID, score unix-milli.
	KeyHoldExp = "hold:exp:{%s}"

	// SKU apa saja yg lagi dipegang user: set hold:skus:{userID}.
	KeyUserSKUs = "hold:skus:%s"

	// Cache status order: order_status:{order_id} -> JSON kecil.
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}.
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
