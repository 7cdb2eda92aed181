package messages

import "fmt"

// ─── Order builders ─────────────────────────────────────────────────────────

func OrderConfirmed(orderNumber string, total float64) string {
	return fmt.Sprintf(OrderConfirmedContent, orderNumber, total)
}

func OrderCancelled(orderNumber, reason string) (string, string) {
	if reason == "" {
		return OrderCancelledSubject, fmt.Sprintf(OrderCancelledContent, orderNumber)
	}
	return OrderCancelledSubject, fmt.Sprintf(OrderCancelledReasonContent, orderNumber, reason)
}

func OrderShipped(orderNumber, tracking string) string {
	if tracking == "" {
		return fmt.Sprintf(OrderShippedContent, orderNumber)
	}
	return fmt.Sprintf(OrderShippedTracking, orderNumber, tracking)
}

func OrderDelivered(orderNumber string) string {
	return fmt.Sprintf(OrderDeliveredContent, orderNumber)
}

// ─── Payment builders ───────────────────────────────────────────────────────

func PaymentReceived(paymentID string, amount float64, currency string) (string, string) {
	return PaymentReceivedSubject, fmt.Sprintf(PaymentReceivedContent, amount, currency, paymentID)
}

func PaymentFailed(paymentID string, amount float64, currency, reason string) (string, string) {
	if reason == "" {
		reason = "unknown reason"
	}
	return PaymentFailedSubject, fmt.Sprintf(PaymentFailedContent, amount, currency, paymentID, reason)
}

// ─── Seller & account builders ──────────────────────────────────────────────

func SellerApproved(storeName string) (string, string) {
	return SellerApprovedSubject, fmt.Sprintf(SellerApprovedContent, storeName)
}

func Welcome(firstName string) (string, string) {
	if firstName == "" {
		return WelcomeSubject, WelcomeContentNoName
	}
	return WelcomeSubject, fmt.Sprintf(WelcomeContent, firstName)
}
