package audithook

// Action constants for audit events.
const (
	// Order actions
	ActionOrderCreated       = "order.created"
	ActionOrderStatusChanged = "order.status_changed"
	ActionOrderCancelled     = "order.cancelled"
	ActionOrderSentToErp     = "order.sent_to_erp"
	ActionOrderErpFailed     = "order.erp_failed"
	ActionOrderInvoiced      = "order.invoiced"

	// Invoice actions
	ActionInvoiceIssued    = "invoice.issued"
	ActionInvoiceCancelled = "invoice.cancelled"
	ActionInvoicePaid      = "invoice.paid"

	// Payment actions
	ActionPaymentRegistered = "payment.registered"
	ActionPaymentConfirmed  = "payment.confirmed"
	ActionPaymentCancelled  = "payment.cancelled"
)

// Resource constants for audit events.
const (
	ResourceOrder   = "order"
	ResourceInvoice = "invoice"
	ResourcePayment = "payment"
)

// Category constants for audit events.
const (
	CategoryFulfillment = "fulfillment"
	CategoryBilling     = "billing"
	CategoryPayment     = "payment"
	CategoryIntegration = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
