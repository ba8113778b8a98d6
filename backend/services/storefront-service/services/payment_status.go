package services

import (
	"strings"

	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
)

// statusEffect is what a gateway transaction state does to an order.
// An empty PaymentStatus leaves the stored value untouched.
type statusEffect struct {
	PaymentStatus string
	Paid          bool
	Cancel        bool
}

// resolveGatewayStatus maps transaction_status and fraud_status to an effect.
func resolveGatewayStatus(transactionStatus, fraudStatus string) statusEffect {
	status := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))

	switch status {
	case "settlement":
		return statusEffect{PaymentStatus: models.PaymentStatusSettlement, Paid: true}
	case "capture":
		switch fraud {
		case "", "accept":
			return statusEffect{PaymentStatus: models.PaymentStatusCapture, Paid: true}
		case "deny":
			return statusEffect{PaymentStatus: models.PaymentStatusDeny, Cancel: true}
		}
		// challenge: wait for the merchant decision
		return statusEffect{}
	case "deny", "cancel", "expire", "failure":
		return statusEffect{PaymentStatus: strings.ToUpper(status), Cancel: true}
	case "refund", "partial_refund":
		return statusEffect{PaymentStatus: strings.ToUpper(status)}
	}
	// pending, authorize and anything unknown
	return statusEffect{}
}
