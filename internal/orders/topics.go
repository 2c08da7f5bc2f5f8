package orders

const (
	TopicCheckoutCompleted  = "checkout.completed"
	TopicCheckoutIncomplete = "checkout.incomplete"
)

// Partition key = order_id, supaya event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
