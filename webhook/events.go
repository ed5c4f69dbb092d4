package webhook

// Event names carried in the X-Hook-Event header and matched against a
// webhook's subscription list.
const (
	OrderCreated = "order.created"
	OrderUpdated = "order.updated"
	OrderDeleted = "order.deleted"

	TransactionCreated = "transaction.created"
	TransactionUpdated = "transaction.updated"
	TransactionDeleted = "transaction.deleted"

	CustomerCreated = "customer.created"
	CustomerUpdated = "customer.updated"
	CustomerDeleted = "customer.deleted"
)

// Events lists every event name a webhook may subscribe to
func Events() []string {
	return []string{
		OrderCreated, OrderUpdated, OrderDeleted,
		TransactionCreated, TransactionUpdated, TransactionDeleted,
		CustomerCreated, CustomerUpdated, CustomerDeleted,
	}
}
