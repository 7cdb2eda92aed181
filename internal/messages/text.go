package messages

// ─── Orders ──────────────────────────────────────────────────────────────────

const (
	OrderConfirmedContent = "Your order %s has been received. Total: %.2f."

	OrderCancelledSubject       = "Your order was cancelled"
	OrderCancelledContent       = "Order %s has been cancelled."
	OrderCancelledReasonContent = "Order %s has been cancelled. Reason: %s."

	OrderShippedContent   = "Order %s has been shipped."
	OrderShippedTracking  = "Order %s has been shipped. Tracking code: %s."
	OrderDeliveredContent = "Order %s has been delivered."
)

// ─── Payments ────────────────────────────────────────────────────────────────

const (
	PaymentReceivedSubject = "Payment received"
	PaymentReceivedContent = "We received your payment of %.2f %s (ref %s)."

	PaymentFailedSubject = "Payment failed"
	PaymentFailedContent = "Your payment of %.2f %s (ref %s) could not be processed: %s."
)

// ─── Sellers & accounts ─────────────────────────────────────────────────────

const (
	SellerApprovedSubject = "Your store has been approved"
	SellerApprovedContent = "Congratulations! Your store '%s' is now live on the marketplace."

	WelcomeSubject       = "Welcome to the marketplace"
	WelcomeContent       = "Hi %s, thanks for signing up. Your account is ready."
	WelcomeContentNoName = "Hi, thanks for signing up. Your account is ready."
)
